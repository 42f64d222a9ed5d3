// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/cyprianokoli/life-os-dashboard/internal/domain"
)

// Store defines the interface for persisting user documents.
type Store interface {
	// Load retrieves the document for a user. If no document has been
	// persisted yet, it returns a fresh default document without writing
	// anything (documents are created lazily on first read).
	Load(ctx context.Context, userID string) (*domain.Document, error)

	// Save serializes the full document, overwriting any prior version.
	// There is no partial write: the document is replaced wholesale.
	Save(ctx context.Context, userID string, doc *domain.Document) error
}
