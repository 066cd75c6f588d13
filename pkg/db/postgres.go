package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

const documentColumns = "id, title, content, created_at, updated_at, version"

// PostgresDocumentStore implements IDocumentStore using PostgreSQL
type PostgresDocumentStore struct {
	db *sql.DB
}

// NewPostgresDocumentStore creates a new PostgreSQL document store
func NewPostgresDocumentStore(ctx context.Context, connStr string) (*PostgresDocumentStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresDocumentStore{db: db}

	// Create the documents table if it doesn't exist
	if err := store.createTable(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *PostgresDocumentStore) Close() error {
	return s.db.Close()
}

func (s *PostgresDocumentStore) CreateDocument(ctx context.Context, title, content string) (*Document, error) {
	id := uuid.New().String()
	now := time.Now()

	query := `
		INSERT INTO documents (id, title, content, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + documentColumns

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, id, title, content, now, now, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	return doc, nil
}

func (s *PostgresDocumentStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

func (s *PostgresDocumentStore) UpdateDocument(ctx context.Context, id string, updates *DocumentUpdate) (*Document, error) {
	if updates.Title == nil {
		return s.GetDocument(ctx, id)
	}

	query := `
		UPDATE documents
		SET title = $1, updated_at = $2, version = version + 1
		WHERE id = $3
		RETURNING ` + documentColumns

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, *updates.Title, time.Now(), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to update document: %w", err)
	}

	return doc, nil
}

func (s *PostgresDocumentStore) DeleteDocument(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return expectOneRow(result)
}

func (s *PostgresDocumentStore) ListDocuments(ctx context.Context) ([]*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var documents []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		documents = append(documents, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return documents, nil
}

// LoadContent returns the current content of a document
func (s *PostgresDocumentStore) LoadContent(ctx context.Context, id string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM documents WHERE id = $1`, id).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrDocumentNotFound
		}
		return "", fmt.Errorf("failed to load content: %w", err)
	}
	return content, nil
}

// SaveContent overwrites the content of a document and bumps its version
func (s *PostgresDocumentStore) SaveContent(ctx context.Context, id, content string) error {
	query := `UPDATE documents SET content = $1, updated_at = $2, version = version + 1 WHERE id = $3`

	result, err := s.db.ExecContext(ctx, query, content, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to save content: %w", err)
	}
	return expectOneRow(result)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*Document, error) {
	doc := &Document{}
	err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.Content,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&doc.Version,
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// Compile-time check to ensure PostgresDocumentStore implements DocumentStore interface
var _ IDocumentStore = (*PostgresDocumentStore)(nil)
