package book

import (
	"context"
)

//go:generate mockgen -source=ports.go -destination=mock_ports.go -package=book

// Engine is the document search engine the catalogue is stored in.
// Implementations must be safe for concurrent use.
type Engine interface {
	Index(ctx context.Context, index, id string, doc Book) error
	// Get reports found=false, with a nil error, when the id does not exist.
	Get(ctx context.Context, index, id string) (Book, bool, error)
	// UpdateMerge overwrites the stored fields present in doc. A missing id
	// yields an error wrapping ErrNotFound.
	UpdateMerge(ctx context.Context, index, id string, doc Book) error
	// Delete yields an error wrapping ErrNotFound when the id does not exist.
	Delete(ctx context.Context, index, id string) error
	Search(ctx context.Context, index string, plan Plan) ([]Book, error)
	CreateIndex(ctx context.Context, index string) error
}

// Pinger is implemented by engines that can report their own readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}
