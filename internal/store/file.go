package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/cyprianokoli/life-os-dashboard/internal/domain"
)

// FileStore implements Store with one pretty-printed JSON file per user
// under a data directory, named <userID>.json.
//
// Writes are serialized per store with a mutex so two goroutines cannot
// interleave partial file contents. There is no isolation across a
// read-modify-write cycle: concurrent writers racing on the same user
// produce last-write-wins at full-document granularity.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a file-backed document store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the on-disk path for a user's document.
func (s *FileStore) Path(userID string) string {
	return filepath.Join(s.dir, userID+".json")
}

// Load retrieves the document for a user, returning a fresh default
// document if none exists on disk.
func (s *FileStore) Load(ctx context.Context, userID string) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NewDocument(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read document for %s: %w", userID, err)
	}

	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document for %s: %w", userID, err)
	}
	doc.Normalize()

	return &doc, nil
}

// Save serializes the full document, overwriting any prior version.
func (s *FileStore) Save(ctx context.Context, userID string, doc *domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document for %s: %w", userID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.Path(userID), data, 0644); err != nil {
		return fmt.Errorf("write document for %s: %w", userID, err)
	}
	return nil
}
