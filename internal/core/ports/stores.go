package ports

import (
	"context"
	"io"

	"streamcast/internal/core/domain"
)

// RecordingStore is durable, chunked storage of opaque binary blobs.
//
// Upload consumes r to completion before the recording becomes visible;
// if r fails mid-stream nothing is committed. Open returns a sequential
// reader over the stored chunks that the caller must close. Every
// operation returns domain.ErrStoreUnavailable when the backing store
// cannot be reached.
type RecordingStore interface {
	Upload(ctx context.Context, filename, contentType string, r io.Reader) (*domain.Recording, error)
	Get(ctx context.Context, id domain.RecordingID) (*domain.Recording, error)
	List(ctx context.Context) ([]*domain.Recording, error)
	Open(ctx context.Context, id domain.RecordingID) (io.ReadCloser, error)
	Delete(ctx context.Context, id domain.RecordingID) error

	// Ping reports store reachability. Handlers call it before opening
	// any stream so a half-open response is never left dangling.
	Ping(ctx context.Context) error
}
