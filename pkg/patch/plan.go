package patch

import (
	"fmt"

	"notes-assistant/pkg/edit"
)

// SequentialStepFailure reports the step that stopped a plan. Index is
// 0-based; Err is the step's own error, usually a *ContextNotFoundError.
type SequentialStepFailure struct {
	Index int
	Total int
	Err   error
}

func (e *SequentialStepFailure) Error() string {
	return fmt.Sprintf("step %d of %d failed: %v", e.Index+1, e.Total, e.Err)
}

func (e *SequentialStepFailure) Unwrap() error {
	return e.Err
}

// ApplyPlan folds steps over content in order, each step seeing the output
// of the one before it. If any step fails the original content is returned
// unchanged together with a *SequentialStepFailure.
func ApplyPlan(content string, steps []edit.Step) (string, error) {
	current := content
	for i, step := range steps {
		next, err := ApplyStep(current, step)
		if err != nil {
			return content, &SequentialStepFailure{Index: i, Total: len(steps), Err: err}
		}
		current = next
	}
	return current, nil
}
