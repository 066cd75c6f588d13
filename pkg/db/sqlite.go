package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteColumns = "id, title, content, created_at_unixms, updated_at_unixms, version"

// SQLiteDocumentStore implements IDocumentStore on a local SQLite file. It is
// meant for single-user setups and tests; ":memory:" is accepted as path.
type SQLiteDocumentStore struct {
	db *sql.DB
}

// NewSQLiteDocumentStore opens (and creates if needed) the database at path.
func NewSQLiteDocumentStore(ctx context.Context, path string) (*SQLiteDocumentStore, error) {
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to configure database: %w", err)
		}
	}

	store := &SQLiteDocumentStore{db: db}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return store, nil
}

// Close closes the database
func (s *SQLiteDocumentStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteDocumentStore) CreateDocument(ctx context.Context, title, content string) (*Document, error) {
	id := uuid.New().String()
	now := time.Now().UnixMilli()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (`+sqliteColumns+`) VALUES (?, ?, ?, ?, ?, 1)`,
		id, title, content, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	return s.GetDocument(ctx, id)
}

func (s *SQLiteDocumentStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanSQLiteDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (s *SQLiteDocumentStore) UpdateDocument(ctx context.Context, id string, updates *DocumentUpdate) (*Document, error) {
	if updates.Title == nil {
		return s.GetDocument(ctx, id)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET title = ?, updated_at_unixms = ?, version = version + 1 WHERE id = ?`,
		*updates.Title, time.Now().UnixMilli(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}
	if err := expectOneRow(result); err != nil {
		return nil, err
	}
	return s.GetDocument(ctx, id)
}

func (s *SQLiteDocumentStore) DeleteDocument(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return expectOneRow(result)
}

func (s *SQLiteDocumentStore) ListDocuments(ctx context.Context) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteColumns+` FROM documents ORDER BY updated_at_unixms DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var documents []*Document
	for rows.Next() {
		doc, err := scanSQLiteDocument(rows)
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

func (s *SQLiteDocumentStore) LoadContent(ctx context.Context, id string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM documents WHERE id = ?`, id).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrDocumentNotFound
		}
		return "", fmt.Errorf("failed to load content: %w", err)
	}
	return content, nil
}

func (s *SQLiteDocumentStore) SaveContent(ctx context.Context, id, content string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET content = ?, updated_at_unixms = ?, version = version + 1 WHERE id = ?`,
		content, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to save content: %w", err)
	}
	return expectOneRow(result)
}

func scanSQLiteDocument(row rowScanner) (*Document, error) {
	doc := &Document{}
	var created, updated int64
	if err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &created, &updated, &doc.Version); err != nil {
		return nil, err
	}
	doc.CreatedAt = time.UnixMilli(created)
	doc.UpdatedAt = time.UnixMilli(updated)
	return doc, nil
}

var _ IDocumentStore = (*SQLiteDocumentStore)(nil)
