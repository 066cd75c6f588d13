package edit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// ValidationError reports a structurally invalid proposal. Step is the
// 1-based index of the offending step of a sequential plan, or 0.
type ValidationError struct {
	Field  string
	Step   int
	Reason string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid proposal")
	if e.Step > 0 {
		fmt.Fprintf(&b, ": step %d", e.Step)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": %s", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// fields allowed next to "action" and "explanation" for each action
var actionFields = map[string][]string{
	ActionTargetedEdit:    {"edit_type", "target_context", "content_fragment"},
	ActionSequentialEdits: {"edits"},
	ActionFullReplacement: {"new_full_content"},
}

var stepFields = []string{"edit_type", "target_context", "content_fragment"}

// Validate decodes a raw assistant payload and checks it against the
// proposal shapes. It never mutates anything; a nil error means the
// returned proposal can be handed to the patch executors.
func Validate(raw []byte) (Proposal, error) {
	var fields map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&fields); err != nil {
		return nil, invalid("", "payload is not a JSON object: %v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, invalid("", "unexpected data after the JSON object")
	}
	if fields == nil {
		return nil, invalid("", "payload is null")
	}

	var action string
	if err := decodeString(fields, "action", &action); err != nil {
		return nil, err
	}
	allowed, ok := actionFields[action]
	if !ok {
		return nil, invalid("action", "unrecognized action %q", action)
	}
	if err := checkFields(fields, append([]string{"action", "explanation"}, allowed...)); err != nil {
		return nil, err
	}

	var explanation string
	if err := decodeString(fields, "explanation", &explanation); err != nil {
		return nil, err
	}

	switch action {
	case ActionTargetedEdit:
		step, err := decodeStep(fields)
		if err != nil {
			return nil, err
		}
		return TargetedEdit{Step: step, Explanation: explanation}, nil

	case ActionSequentialEdits:
		rawEdits, ok := fields["edits"]
		if !ok || isNull(rawEdits) {
			return nil, invalid("edits", "is required")
		}
		var edits []map[string]json.RawMessage
		if err := json.Unmarshal(rawEdits, &edits); err != nil {
			return nil, invalid("edits", "must be an array of objects")
		}
		if len(edits) == 0 {
			return nil, invalid("edits", "must contain at least one edit")
		}
		steps := make([]Step, 0, len(edits))
		for i, e := range edits {
			if e == nil {
				return nil, &ValidationError{Step: i + 1, Reason: "edit must be an object"}
			}
			if err := checkFields(e, stepFields); err != nil {
				err.Step = i + 1
				return nil, err
			}
			step, err := decodeStep(e)
			if err != nil {
				err.Step = i + 1
				return nil, err
			}
			steps = append(steps, step)
		}
		return SequentialEditPlan{Steps: steps, Explanation: explanation}, nil

	default:
		var content string
		if err := decodeString(fields, "new_full_content", &content); err != nil {
			return nil, err
		}
		return FullReplacement{NewContent: content, Explanation: explanation}, nil
	}
}

func decodeStep(fields map[string]json.RawMessage) (Step, *ValidationError) {
	var kindName string
	if err := decodeString(fields, "edit_type", &kindName); err != nil {
		return Step{}, err
	}
	kind, ok := ParseStepKind(kindName)
	if !ok {
		return Step{}, invalid("edit_type", "unrecognized edit type %q", kindName)
	}
	step := Step{Kind: kind}

	rawTarget, hasTarget := fields["target_context"]
	targetSet := hasTarget && !isNull(rawTarget)
	if kind.Anchored() {
		if !targetSet {
			return Step{}, invalid("target_context", "is required for %s", kind)
		}
		if err := decodeString(fields, "target_context", &step.TargetContext); err != nil {
			return Step{}, err
		}
	} else if targetSet {
		return Step{}, invalid("target_context", "must be null for %s", kind)
	}

	if _, ok := fields["content_fragment"]; ok || kind != DeleteContext {
		if err := decodeString(fields, "content_fragment", &step.ContentFragment); err != nil {
			return Step{}, err
		}
	}

	if err := step.check(); err != nil {
		return Step{}, err
	}
	return step, nil
}

// decodeString requires fields[name] to be present and a JSON string.
func decodeString(fields map[string]json.RawMessage, name string, dst *string) *ValidationError {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return invalid(name, "is required")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return invalid(name, "must be a string")
	}
	return nil
}

func checkFields(fields map[string]json.RawMessage, allowed []string) *ValidationError {
	var unknown []string
	for name := range fields {
		if !contains(allowed, name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return invalid(unknown[0], "unexpected field")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
