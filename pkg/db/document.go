package db

import (
	"context"
	"errors"
	"time"
)

// ErrDocumentNotFound is returned when no document has the requested ID
var ErrDocumentNotFound = errors.New("document not found")

// Document represents a note in the store
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// ContentStore is the persistence collaborator of the patch engine: an
// opaque key-value service for document content.
type ContentStore interface {
	LoadContent(ctx context.Context, id string) (string, error)
	SaveContent(ctx context.Context, id, content string) error
}

// DocumentStore interface for document persistence
type IDocumentStore interface {
	ContentStore

	CreateDocument(ctx context.Context, title, content string) (*Document, error)
	GetDocument(ctx context.Context, id string) (*Document, error)
	// UpdateDocument applies metadata updates. Nil fields in DocumentUpdate
	// are left unchanged.
	UpdateDocument(ctx context.Context, id string, updates *DocumentUpdate) (*Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context) ([]*Document, error)
	Close() error
}

// DocumentUpdate carries metadata changes. Content is not part of it: it
// only changes through SaveContent.
type DocumentUpdate struct {
	Title *string `json:"title,omitempty"`
}
