package edit

import (
	"encoding/json"
	"fmt"
)

// StepKind identifies one of the five edit primitives
type StepKind int

const (
	InsertAfterContext StepKind = iota + 1
	ReplaceContext
	DeleteContext
	InsertAtStart
	AppendAtEnd
)

var stepKindNames = map[StepKind]string{
	InsertAfterContext: "insert_after_context",
	ReplaceContext:     "replace_context",
	DeleteContext:      "delete_context",
	InsertAtStart:      "insert_at_start",
	AppendAtEnd:        "append_at_end",
}

// String returns the wire name of the kind
func (k StepKind) String() string {
	if name, ok := stepKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("StepKind(%d)", int(k))
}

// ParseStepKind maps a wire name such as "replace_context" to its kind.
func ParseStepKind(name string) (StepKind, bool) {
	for kind, n := range stepKindNames {
		if n == name {
			return kind, true
		}
	}
	return 0, false
}

// Valid reports whether k is one of the five known kinds.
func (k StepKind) Valid() bool {
	_, ok := stepKindNames[k]
	return ok
}

// Anchored reports whether the kind locates its edit through a target context.
// InsertAtStart and AppendAtEnd are positional and carry no target.
func (k StepKind) Anchored() bool {
	switch k {
	case InsertAfterContext, ReplaceContext, DeleteContext:
		return true
	}
	return false
}

// Step is a single snippet-anchored mutation. TargetContext is empty for the
// positional kinds and a non-empty literal snippet otherwise.
type Step struct {
	Kind            StepKind
	TargetContext   string
	ContentFragment string
}

// check verifies that a target is present exactly when the kind is
// anchored, and that only deletions carry an empty fragment.
func (s Step) check() *ValidationError {
	switch {
	case !s.Kind.Valid():
		return invalid("edit_type", "unrecognized edit type %q", s.Kind)
	case s.Kind.Anchored() && s.TargetContext == "":
		return invalid("target_context", "must not be empty for %s", s.Kind)
	case !s.Kind.Anchored() && s.TargetContext != "":
		return invalid("target_context", "must be null for %s", s.Kind)
	case s.Kind != DeleteContext && s.ContentFragment == "":
		return invalid("content_fragment", "must not be empty for %s", s.Kind)
	}
	return nil
}

// MarshalJSON encodes the step in the assistant's wire format, with a null
// target_context for positional kinds.
func (s Step) MarshalJSON() ([]byte, error) {
	var target *string
	if s.Kind.Anchored() {
		t := s.TargetContext
		target = &t
	}
	return json.Marshal(struct {
		EditType        string  `json:"edit_type"`
		TargetContext   *string `json:"target_context"`
		ContentFragment string  `json:"content_fragment"`
	}{s.Kind.String(), target, s.ContentFragment})
}

// Wire names of the three proposal actions
const (
	ActionTargetedEdit    = "propose_targeted_edit"
	ActionSequentialEdits = "propose_sequential_edits"
	ActionFullReplacement = "propose_full_content_replacement"
)

// Proposal is an edit proposed by the assistant. It is implemented only by
// TargetedEdit, SequentialEditPlan and FullReplacement.
type Proposal interface {
	// Action returns the wire action name of the proposal.
	Action() string
	// Explain returns the assistant's explanation for the change.
	Explain() string

	isProposal()
}

// TargetedEdit is exactly one mutation.
type TargetedEdit struct {
	Step        Step
	Explanation string
}

// SequentialEditPlan is an ordered, non-empty list of mutations where each
// step operates on the output of the previous one.
type SequentialEditPlan struct {
	Steps       []Step
	Explanation string
}

// FullReplacement replaces the whole content, possibly with the empty string.
type FullReplacement struct {
	NewContent  string
	Explanation string
}

func (TargetedEdit) isProposal()       {}
func (SequentialEditPlan) isProposal() {}
func (FullReplacement) isProposal()    {}

func (TargetedEdit) Action() string       { return ActionTargetedEdit }
func (SequentialEditPlan) Action() string { return ActionSequentialEdits }
func (FullReplacement) Action() string    { return ActionFullReplacement }

func (p TargetedEdit) Explain() string       { return p.Explanation }
func (p SequentialEditPlan) Explain() string { return p.Explanation }
func (p FullReplacement) Explain() string    { return p.Explanation }

func (p TargetedEdit) MarshalJSON() ([]byte, error) {
	var target *string
	if p.Step.Kind.Anchored() {
		t := p.Step.TargetContext
		target = &t
	}
	return json.Marshal(struct {
		Action          string  `json:"action"`
		Explanation     string  `json:"explanation"`
		EditType        string  `json:"edit_type"`
		TargetContext   *string `json:"target_context"`
		ContentFragment string  `json:"content_fragment"`
	}{ActionTargetedEdit, p.Explanation, p.Step.Kind.String(), target, p.Step.ContentFragment})
}

func (p SequentialEditPlan) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Action      string `json:"action"`
		Explanation string `json:"explanation"`
		Edits       []Step `json:"edits"`
	}{ActionSequentialEdits, p.Explanation, p.Steps})
}

func (p FullReplacement) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Action         string `json:"action"`
		Explanation    string `json:"explanation"`
		NewFullContent string `json:"new_full_content"`
	}{ActionFullReplacement, p.Explanation, p.NewContent})
}
