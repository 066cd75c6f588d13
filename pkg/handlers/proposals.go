package handlers

import (
	"io"
	"net/http"

	"notes-assistant/pkg/edit"

	"github.com/gorilla/mux"
)

const maxProposalBytes = 1 << 20

func (h *Handlers) readProposal(w http.ResponseWriter, r *http.Request) (edit.Proposal, bool) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxProposalBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusRequestEntityTooLarge)
		return nil, false
	}
	p, err := h.assistant.ProposeAndPreview(raw)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return p, true
}

// PreviewProposal validates the assistant payload in the request body and
// returns the content it would produce. Nothing is saved.
func (h *Handlers) PreviewProposal(w http.ResponseWriter, r *http.Request) {
	p, ok := h.readProposal(w, r)
	if !ok {
		return
	}

	preview, err := h.assistant.Preview(r.Context(), mux.Vars(r)["id"], p)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"proposal": p,
		"preview":  preview,
	})
}

// AcceptProposal validates the assistant payload and applies it to the
// stored content of the document.
func (h *Handlers) AcceptProposal(w http.ResponseWriter, r *http.Request) {
	p, ok := h.readProposal(w, r)
	if !ok {
		return
	}

	res, err := h.assistant.AcceptForDocument(r.Context(), mux.Vars(r)["id"], p)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// ListUpdates returns the update records of a document, oldest first
func (h *Handlers) ListUpdates(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": id,
		"updates":     h.assistant.Ledger().History(id),
	})
}

// RevertUpdate undoes an update while it is still the latest of its document
func (h *Handlers) RevertUpdate(w http.ResponseWriter, r *http.Request) {
	rec, restored, err := h.assistant.RevertByID(r.Context(), mux.Vars(r)["recordId"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"record":  rec,
		"content": restored,
	})
}
