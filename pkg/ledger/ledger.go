// Package ledger keeps the single-level undo history of applied proposals.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotRevertible is matched by every RevertError.
var ErrNotRevertible = errors.New("update cannot be reverted")

// ContentSaver persists document content. It is the write half of the
// document store.
type ContentSaver interface {
	SaveContent(ctx context.Context, documentID, content string) error
}

// State is the lifecycle position of an UpdateRecord.
type State int

const (
	// Applied records are the latest update of their document and can be reverted.
	Applied State = iota
	// Reverted records have been undone.
	Reverted
	// Superseded records were replaced by a newer update of the same document.
	Superseded
)

func (s State) String() string {
	switch s {
	case Applied:
		return "applied"
	case Reverted:
		return "reverted"
	case Superseded:
		return "superseded"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// UpdateRecord captures the content transition made by one accepted proposal.
type UpdateRecord struct {
	ID              string
	DocumentID      string
	PreviousContent string
	NewContent      string
	Explanation     string
	AppliedAt       time.Time

	mu        sync.Mutex
	state     State
	reverting bool
}

// State returns the current lifecycle state.
func (r *UpdateRecord) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// CanRevert reports whether the record is still the latest, unreverted
// update of its document.
func (r *UpdateRecord) CanRevert() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == Applied && !r.reverting
}

// MarshalJSON includes the lifecycle state so clients know whether to offer
// an undo.
func (r *UpdateRecord) MarshalJSON() ([]byte, error) {
	r.mu.Lock()
	state, canRevert := r.state, r.state == Applied && !r.reverting
	r.mu.Unlock()

	return json.Marshal(struct {
		ID              string    `json:"id"`
		DocumentID      string    `json:"document_id"`
		PreviousContent string    `json:"previous_content"`
		NewContent      string    `json:"new_content"`
		Explanation     string    `json:"explanation,omitempty"`
		AppliedAt       time.Time `json:"applied_at"`
		State           string    `json:"state"`
		CanRevert       bool      `json:"can_revert"`
	}{r.ID, r.DocumentID, r.PreviousContent, r.NewContent, r.Explanation, r.AppliedAt, state.String(), canRevert})
}

// RevertError is returned when reverting a record that is stale, already
// reverted, or currently being reverted.
type RevertError struct {
	RecordID   string
	DocumentID string
	State      State
	InProgress bool
}

func (e *RevertError) Error() string {
	if e.InProgress {
		return fmt.Sprintf("update %s of document %s is already being reverted", e.RecordID, e.DocumentID)
	}
	return fmt.Sprintf("update %s of document %s cannot be reverted: %s", e.RecordID, e.DocumentID, e.State)
}

func (e *RevertError) Is(target error) bool {
	return target == ErrNotRevertible
}

// Ledger records applied updates per document. Only the most recent record
// of a document is revertible, and only once.
type Ledger struct {
	store ContentSaver

	mu      sync.RWMutex
	records map[string]*UpdateRecord
	history map[string][]*UpdateRecord
	now     func() time.Time
}

// New creates a ledger that replays reverts through store.
func New(store ContentSaver) *Ledger {
	return &Ledger{
		store:   store,
		records: make(map[string]*UpdateRecord),
		history: make(map[string][]*UpdateRecord),
		now:     time.Now,
	}
}

// RecordApply registers a persisted transition and supersedes any earlier
// record of the same document. Call it only after the new content has been
// written successfully.
func (l *Ledger) RecordApply(documentID, previousContent, newContent, explanation string) *UpdateRecord {
	rec := &UpdateRecord{
		ID:              uuid.New().String(),
		DocumentID:      documentID,
		PreviousContent: previousContent,
		NewContent:      newContent,
		Explanation:     explanation,
		AppliedAt:       l.now(),
		state:           Applied,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if prior := l.history[documentID]; len(prior) > 0 {
		last := prior[len(prior)-1]
		last.mu.Lock()
		if last.state == Applied {
			last.state = Superseded
		}
		last.mu.Unlock()
	}
	l.records[rec.ID] = rec
	l.history[documentID] = append(l.history[documentID], rec)
	return rec
}

// Revert writes the record's previous content back through the store and
// marks the record reverted. A failed write leaves the record revertible.
func (l *Ledger) Revert(ctx context.Context, rec *UpdateRecord) (string, error) {
	rec.mu.Lock()
	if rec.state != Applied || rec.reverting {
		err := &RevertError{RecordID: rec.ID, DocumentID: rec.DocumentID, State: rec.state, InProgress: rec.reverting}
		rec.mu.Unlock()
		return "", err
	}
	rec.reverting = true
	rec.mu.Unlock()

	err := l.store.SaveContent(ctx, rec.DocumentID, rec.PreviousContent)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.reverting = false
	if err != nil {
		return "", fmt.Errorf("failed to restore document %s: %w", rec.DocumentID, err)
	}
	if rec.state == Applied {
		rec.state = Reverted
	}
	return rec.PreviousContent, nil
}

// Get returns the record with the given ID.
func (l *Ledger) Get(id string) (*UpdateRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[id]
	return rec, ok
}

// Latest returns the most recent record of a document, revertible or not.
func (l *Ledger) Latest(documentID string) (*UpdateRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h := l.history[documentID]
	if len(h) == 0 {
		return nil, false
	}
	return h[len(h)-1], true
}

// History returns the records of a document, oldest first.
func (l *Ledger) History(documentID string) []*UpdateRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h := l.history[documentID]
	out := make([]*UpdateRecord, len(h))
	copy(out, h)
	return out
}
