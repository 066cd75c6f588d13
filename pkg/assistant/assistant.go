// Package assistant is the surface the UI layer uses to preview, accept and
// revert edit proposals made by the writing assistant.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"

	"notes-assistant/pkg/db"
	"notes-assistant/pkg/edit"
	"notes-assistant/pkg/ledger"
	"notes-assistant/pkg/patch"
	"notes-assistant/pkg/room"
)

var (
	// ErrApply is matched by every ApplyError.
	ErrApply = errors.New("failed to persist update")
	// ErrRecordNotFound is returned for unknown update record IDs.
	ErrRecordNotFound = errors.New("update record not found")
)

// ApplyError reports that the patched content could not be written. Nothing
// was recorded and the caller should keep showing the prior content.
type ApplyError struct {
	DocumentID string
	Err        error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("failed to save document %s: %v", e.DocumentID, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

func (e *ApplyError) Is(target error) bool {
	return target == ErrApply
}

// Result is the outcome of an accepted proposal
type Result struct {
	NewContent string               `json:"new_content"`
	Record     *ledger.UpdateRecord `json:"record"`
}

// Service ties the validator, the patch executors, the persistence
// collaborator and the update ledger together.
type Service struct {
	store  db.ContentStore
	rooms  *room.RoomManager
	ledger *ledger.Ledger
}

// NewService creates a service writing through store.
func NewService(store db.ContentStore, rooms *room.RoomManager) *Service {
	return &Service{
		store:  store,
		rooms:  rooms,
		ledger: ledger.New(store),
	}
}

// Ledger exposes the update records of the session.
func (s *Service) Ledger() *ledger.Ledger {
	return s.ledger
}

// ProposeAndPreview validates a raw assistant payload without touching any
// document.
func (s *Service) ProposeAndPreview(raw []byte) (edit.Proposal, error) {
	return edit.Validate(raw)
}

// AcceptProposal applies proposal to currentContent, persists the result and
// records the transition. Only one apply or revert may be in flight per
// document; a concurrent call fails with a *room.BusyError.
func (s *Service) AcceptProposal(ctx context.Context, documentID, currentContent string, proposal edit.Proposal) (*Result, error) {
	r := s.rooms.GetOrCreateRoom(documentID)
	release, err := r.Begin(room.Applying)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.applyLocked(ctx, r, documentID, currentContent, proposal)
}

// AcceptForDocument accepts proposal against the stored content of the
// document. The content is read while the document's gate is held.
func (s *Service) AcceptForDocument(ctx context.Context, documentID string, proposal edit.Proposal) (*Result, error) {
	r := s.rooms.GetOrCreateRoom(documentID)
	release, err := r.Begin(room.Applying)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.store.LoadContent(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return s.applyLocked(ctx, r, documentID, current, proposal)
}

// applyLocked must be called with r in the Applying state.
func (s *Service) applyLocked(ctx context.Context, r *room.Room, documentID, currentContent string, proposal edit.Proposal) (*Result, error) {
	newContent, err := patch.Apply(currentContent, proposal)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveContent(ctx, documentID, newContent); err != nil {
		log.Printf("Failed to save document %s: %v", documentID, err)
		return nil, &ApplyError{DocumentID: documentID, Err: err}
	}

	rec := s.ledger.RecordApply(documentID, currentContent, newContent, proposal.Explain())
	log.Printf("Applied %s to document %s as update %s", proposal.Action(), documentID, rec.ID)
	r.NotifyUpdate(room.EventUpdateApplied, rec.ID, rec.Explanation, currentContent, newContent)

	return &Result{NewContent: newContent, Record: rec}, nil
}

// Revert restores the content saved in rec. It succeeds at most once per
// record and only while rec is the latest update of its document.
func (s *Service) Revert(ctx context.Context, rec *ledger.UpdateRecord) (string, error) {
	r := s.rooms.GetOrCreateRoom(rec.DocumentID)
	release, err := r.Begin(room.Reverting)
	if err != nil {
		return "", err
	}
	defer release()

	restored, err := s.ledger.Revert(ctx, rec)
	if err != nil {
		return "", err
	}
	log.Printf("Reverted update %s of document %s", rec.ID, rec.DocumentID)
	r.NotifyUpdate(room.EventUpdateReverted, rec.ID, rec.Explanation, rec.NewContent, restored)

	return restored, nil
}

// RevertByID looks the record up in the ledger and reverts it.
func (s *Service) RevertByID(ctx context.Context, recordID string) (*ledger.UpdateRecord, string, error) {
	rec, ok := s.ledger.Get(recordID)
	if !ok {
		return nil, "", ErrRecordNotFound
	}
	restored, err := s.Revert(ctx, rec)
	return rec, restored, err
}

// Preview computes the content the proposal would produce against the
// stored content. Nothing is saved or recorded.
func (s *Service) Preview(ctx context.Context, documentID string, proposal edit.Proposal) (string, error) {
	current, err := s.store.LoadContent(ctx, documentID)
	if err != nil {
		return "", err
	}
	return patch.Apply(current, proposal)
}
