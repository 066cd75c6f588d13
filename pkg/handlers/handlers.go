package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"notes-assistant/pkg/assistant"
	"notes-assistant/pkg/db"
	"notes-assistant/pkg/edit"
	"notes-assistant/pkg/ledger"
	"notes-assistant/pkg/patch"
	"notes-assistant/pkg/room"

	"github.com/gorilla/mux"
)

// Handlers contains all HTTP and WebSocket handlers
type Handlers struct {
	store       db.IDocumentStore
	roomManager *room.RoomManager
	assistant   *assistant.Service
}

// NewHandlers creates a new handlers instance
func NewHandlers(store db.IDocumentStore, roomManager *room.RoomManager, svc *assistant.Service) *Handlers {
	return &Handlers{
		store:       store,
		roomManager: roomManager,
		assistant:   svc,
	}
}

// Register mounts every route on r
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/ws/{documentId}", h.HandleWebSocket)

	r.HandleFunc("/api/documents", h.CreateDocument).Methods("POST")
	r.HandleFunc("/api/documents", h.ListDocuments).Methods("GET")
	r.HandleFunc("/api/documents/{id}", h.GetDocument).Methods("GET")
	r.HandleFunc("/api/documents/{id}", h.UpdateDocument).Methods("PUT")
	r.HandleFunc("/api/documents/{id}", h.DeleteDocument).Methods("DELETE")
	r.HandleFunc("/api/documents/{id}/users", h.GetDocumentUsers).Methods("GET")

	r.HandleFunc("/api/documents/{id}/proposals/preview", h.PreviewProposal).Methods("POST")
	r.HandleFunc("/api/documents/{id}/proposals", h.AcceptProposal).Methods("POST")
	r.HandleFunc("/api/documents/{id}/updates", h.ListUpdates).Methods("GET")
	r.HandleFunc("/api/updates/{recordId}/revert", h.RevertUpdate).Methods("POST")
}

// CreateDocument creates a new document
func (h *Handlers) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	doc, err := h.store.CreateDocument(r.Context(), req.Title, req.Content)
	if err != nil {
		log.Printf("Failed to create document: %v", err)
		http.Error(w, "Failed to create document", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

// ListDocuments returns a list of documents
func (h *Handlers) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.ListDocuments(r.Context())
	if err != nil {
		log.Printf("Failed to list documents: %v", err)
		http.Error(w, "Failed to list documents", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, docs)
}

// GetDocument retrieves a document by ID
func (h *Handlers) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.GetDocument(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// UpdateDocument changes the title of a document. Content changes go through
// proposals so that they are recorded.
func (h *Handlers) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title *string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	doc, err := h.store.UpdateDocument(r.Context(), mux.Vars(r)["id"], &db.DocumentUpdate{Title: req.Title})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument deletes a document
func (h *Handlers) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteDocument(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetDocumentUsers returns the subscribers of a document
func (h *Handlers) GetDocumentUsers(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.store.GetDocument(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	rm := h.roomManager.GetOrCreateRoom(id)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": id,
		"state":       rm.State().String(),
		"users":       rm.GetUsers(),
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
	// Step is 1-based for validation errors and 0-based for plan failures,
	// matching the error it came from.
	Step *int `json:"step,omitempty"`
}

// writeError maps the error taxonomy onto HTTP statuses
func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error(), Kind: "internal"}
	status := http.StatusInternalServerError

	var (
		validation *edit.ValidationError
		failure    *patch.SequentialStepFailure
	)
	switch {
	case errors.As(err, &validation):
		status, resp.Kind, resp.Field = http.StatusBadRequest, "validation", validation.Field
		if validation.Step > 0 {
			resp.Step = &validation.Step
		}
	case errors.As(err, &failure):
		status, resp.Kind = http.StatusUnprocessableEntity, "sequential_step_failure"
		resp.Step = &failure.Index
	case errors.Is(err, patch.ErrContextNotFound):
		status, resp.Kind = http.StatusUnprocessableEntity, "context_not_found"
	case errors.Is(err, room.ErrOperationInFlight):
		status, resp.Kind = http.StatusConflict, "busy"
	case errors.Is(err, ledger.ErrNotRevertible):
		status, resp.Kind = http.StatusConflict, "not_revertible"
	case errors.Is(err, assistant.ErrApply):
		status, resp.Kind = http.StatusBadGateway, "apply"
	case errors.Is(err, db.ErrDocumentNotFound), errors.Is(err, assistant.ErrRecordNotFound):
		status, resp.Kind = http.StatusNotFound, "not_found"
	default:
		log.Printf("Unhandled error: %v", err)
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
