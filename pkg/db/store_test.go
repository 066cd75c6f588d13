package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteDocumentStore {
	t.Helper()
	store, err := NewSQLiteDocumentStore(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteDocumentStore(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	doc, err := store.CreateDocument(ctx, "Groceries", "milk\neggs")
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	if doc.ID == "" || doc.Version != 1 || doc.Content != "milk\neggs" {
		t.Fatalf("unexpected document: %+v", doc)
	}

	t.Run("LoadSaveContent", func(t *testing.T) {
		if err := store.SaveContent(ctx, doc.ID, "milk\neggs\nbread"); err != nil {
			t.Fatalf("SaveContent() error = %v", err)
		}
		content, err := store.LoadContent(ctx, doc.ID)
		if err != nil {
			t.Fatalf("LoadContent() error = %v", err)
		}
		if content != "milk\neggs\nbread" {
			t.Errorf("LoadContent() = %q", content)
		}
		got, err := store.GetDocument(ctx, doc.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Version != 2 {
			t.Errorf("Version = %d, want 2", got.Version)
		}
	})

	t.Run("UpdateTitle", func(t *testing.T) {
		title := "Shopping"
		got, err := store.UpdateDocument(ctx, doc.ID, &DocumentUpdate{Title: &title})
		if err != nil {
			t.Fatalf("UpdateDocument() error = %v", err)
		}
		if got.Title != "Shopping" || got.Content != "milk\neggs\nbread" || got.Version != 3 {
			t.Errorf("unexpected document: %+v", got)
		}

		same, err := store.UpdateDocument(ctx, doc.ID, &DocumentUpdate{})
		if err != nil {
			t.Fatalf("empty UpdateDocument() error = %v", err)
		}
		if same.Version != 3 || same.Content != "milk\neggs\nbread" {
			t.Errorf("empty update changed the document: %+v", same)
		}

		if _, err := store.UpdateDocument(ctx, "missing", &DocumentUpdate{Title: &title}); !errors.Is(err, ErrDocumentNotFound) {
			t.Errorf("UpdateDocument() on missing document error = %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		if _, err := store.CreateDocument(ctx, "Second", ""); err != nil {
			t.Fatal(err)
		}
		docs, err := store.ListDocuments(ctx)
		if err != nil {
			t.Fatalf("ListDocuments() error = %v", err)
		}
		if len(docs) != 2 {
			t.Errorf("len(docs) = %d, want 2", len(docs))
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := store.LoadContent(ctx, "missing"); !errors.Is(err, ErrDocumentNotFound) {
			t.Errorf("LoadContent() error = %v", err)
		}
		if err := store.SaveContent(ctx, "missing", "x"); !errors.Is(err, ErrDocumentNotFound) {
			t.Errorf("SaveContent() error = %v", err)
		}
		if _, err := store.GetDocument(ctx, "missing"); !errors.Is(err, ErrDocumentNotFound) {
			t.Errorf("GetDocument() error = %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := store.DeleteDocument(ctx, doc.ID); err != nil {
			t.Fatalf("DeleteDocument() error = %v", err)
		}
		if err := store.DeleteDocument(ctx, doc.ID); !errors.Is(err, ErrDocumentNotFound) {
			t.Errorf("second DeleteDocument() error = %v", err)
		}
	})
}

func TestFileContentStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileContentStore(dir)

	if _, err := store.LoadContent(ctx, "notes/today.md"); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("LoadContent() on missing file error = %v", err)
	}

	if err := store.SaveContent(ctx, "notes/today.md", "first"); err != nil {
		t.Fatalf("SaveContent() error = %v", err)
	}
	if err := store.SaveContent(ctx, "notes/today.md", "second"); err != nil {
		t.Fatalf("SaveContent() error = %v", err)
	}
	content, err := store.LoadContent(ctx, "notes/today.md")
	if err != nil {
		t.Fatalf("LoadContent() error = %v", err)
	}
	if content != "second" {
		t.Errorf("LoadContent() = %q", content)
	}

	data, err := os.ReadFile(filepath.Join(dir, "notes", "today.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("file holds %q", data)
	}

	for _, id := range []string{"", "../escape.md", "/etc/passwd"} {
		if err := store.SaveContent(ctx, id, "x"); err == nil {
			t.Errorf("SaveContent(%q) must fail", id)
		}
	}
}

type stuckLock struct{}

func (stuckLock) TryLockContext(ctx context.Context, retry time.Duration) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func (stuckLock) Unlock() error { return nil }

func TestFileContentStoreLockTimeout(t *testing.T) {
	store := NewFileContentStore(t.TempDir())
	store.newLock = func(string) FileLock { return stuckLock{} }

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := store.SaveContent(ctx, "a.txt", "x"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("SaveContent() error = %v, want deadline exceeded", err)
	}
	if _, err := store.LoadContent(context.Background(), "a.txt"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("file must not be written without the lock, got %v", err)
	}
}
