package db

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// FileLock guards a file against concurrent writers from other processes
type FileLock interface {
	// TryLockContext attempts to acquire an exclusive lock with retries
	TryLockContext(ctx context.Context, retryInterval time.Duration) (bool, error)
	// Unlock releases the lock
	Unlock() error
}

// FileContentStore keeps each document as a plain text file under Root. The
// document ID is the slash-separated path relative to Root.
type FileContentStore struct {
	Root          string
	RetryInterval time.Duration

	newLock func(path string) FileLock
}

// NewFileContentStore creates a store rooted at dir, locking with flock.
func NewFileContentStore(dir string) *FileContentStore {
	return &FileContentStore{
		Root:          dir,
		RetryInterval: 50 * time.Millisecond,
		newLock: func(path string) FileLock {
			return flock.New(path)
		},
	}
}

func (s *FileContentStore) path(id string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(id))
	if id == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid document id %q", id)
	}
	return filepath.Join(s.Root, clean), nil
}

// LoadContent reads the document file
func (s *FileContentStore) LoadContent(ctx context.Context, id string) (string, error) {
	p, err := s.path(id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrDocumentNotFound
		}
		return "", fmt.Errorf("failed to read %s: %w", p, err)
	}
	return string(data), nil
}

// SaveContent replaces the document file atomically while holding its lock
func (s *FileContentStore) SaveContent(ctx context.Context, id, content string) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	lock := s.newLock(p + ".lock")
	locked, err := lock.TryLockContext(ctx, s.RetryInterval)
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", p, err)
	}
	if !locked {
		return fmt.Errorf("failed to lock %s", p)
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(filepath.Dir(p), "."+filepath.Base(p)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", p, err)
	}
	return nil
}

var _ ContentStore = (*FileContentStore)(nil)
