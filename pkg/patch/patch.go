// Package patch applies snippet-anchored edit steps to note content.
//
// Every positional edit is located by the first occurrence of a literal
// target context; there is no line or offset addressing.
package patch

import (
	"errors"
	"fmt"
	"strings"

	"notes-assistant/pkg/edit"
)

// ErrContextNotFound is matched by every ContextNotFoundError.
var ErrContextNotFound = errors.New("target context not found")

// ContextNotFoundError reports an anchor that does not occur in the content
// the step was applied to.
type ContextNotFoundError struct {
	Kind   edit.StepKind
	Target string
}

func (e *ContextNotFoundError) Error() string {
	return fmt.Sprintf("%s: target context %q not found", e.Kind, e.Target)
}

func (e *ContextNotFoundError) Is(target error) bool {
	return target == ErrContextNotFound
}

const separator = "\n"

// ApplyStep applies a single step to content. On failure the original
// content is returned along with the error.
func ApplyStep(content string, step edit.Step) (string, error) {
	switch step.Kind {
	case edit.InsertAtStart:
		if content == "" {
			return step.ContentFragment, nil
		}
		return step.ContentFragment + separator + content, nil

	case edit.AppendAtEnd:
		if content == "" {
			return step.ContentFragment, nil
		}
		return content + separator + step.ContentFragment, nil

	case edit.InsertAfterContext:
		_, end, err := locate(content, step)
		if err != nil {
			return content, err
		}
		fragment := step.ContentFragment
		if end > 0 && content[end-1] != '\n' {
			fragment = separator + fragment
		}
		return content[:end] + fragment + content[end:], nil

	case edit.ReplaceContext:
		start, end, err := locate(content, step)
		if err != nil {
			return content, err
		}
		return content[:start] + step.ContentFragment + content[end:], nil

	case edit.DeleteContext:
		start, end, err := locate(content, step)
		if err != nil {
			return content, err
		}
		return strings.TrimSpace(joinCollapsed(content[:start], content[end:])), nil
	}
	return content, fmt.Errorf("unknown step kind %s", step.Kind)
}

// locate returns the span of the first occurrence of the step's target.
func locate(content string, step edit.Step) (int, int, error) {
	if step.TargetContext == "" {
		return 0, 0, &ContextNotFoundError{Kind: step.Kind}
	}
	i := strings.Index(content, step.TargetContext)
	if i < 0 {
		return 0, 0, &ContextNotFoundError{Kind: step.Kind, Target: step.TargetContext}
	}
	return i, i + len(step.TargetContext), nil
}

// joinCollapsed joins the text around a removed span, reducing a run of
// newlines that meets at the seam to a single newline.
func joinCollapsed(before, after string) string {
	left := strings.TrimRight(before, "\n")
	right := strings.TrimLeft(after, "\n")
	if left == before || right == after {
		return before + after
	}
	return left + separator + right
}

// ApplyFullReplacement returns newContent. Replacing with the empty string
// clears the note.
func ApplyFullReplacement(newContent string) string {
	return newContent
}

// Apply computes the content resulting from p. It does not persist anything.
func Apply(content string, p edit.Proposal) (string, error) {
	switch p := p.(type) {
	case edit.TargetedEdit:
		return ApplyStep(content, p.Step)
	case edit.SequentialEditPlan:
		return ApplyPlan(content, p.Steps)
	case edit.FullReplacement:
		return ApplyFullReplacement(p.NewContent), nil
	}
	return content, fmt.Errorf("unsupported proposal %T", p)
}
