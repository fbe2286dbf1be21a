package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/pkg/optimize"
	"streamcast/pkg/utils"
)

// MemoryRecordingStore keeps recordings in process memory, chunked the
// same way the Redis backend chunks them. It backs tests and the
// factory's fallback path.
type MemoryRecordingStore struct {
	mu        sync.RWMutex
	chunkSize int
	buffers   *optimize.BytePool
	meta      map[domain.RecordingID]*domain.Recording
	chunks    map[domain.RecordingID][][]byte
}

func NewMemoryRecordingStore(chunkSize int) ports.RecordingStore {
	if chunkSize <= 0 {
		chunkSize = 255 * 1024
	}
	return &MemoryRecordingStore{
		chunkSize: chunkSize,
		buffers:   optimize.NewBytePool(chunkSize),
		meta:      make(map[domain.RecordingID]*domain.Recording),
		chunks:    make(map[domain.RecordingID][][]byte),
	}
}

func (s *MemoryRecordingStore) Upload(ctx context.Context, filename, contentType string, r io.Reader) (*domain.Recording, error) {
	// Chunks accumulate locally and are committed in one step, so a
	// mid-stream failure leaves no trace.
	var chunks [][]byte
	var length int64
	buf := s.buffers.Get()
	defer s.buffers.Put(buf)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			chunks = append(chunks, chunk)
			length += int64(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	rec := &domain.Recording{
		ID:          domain.RecordingID(utils.GenerateRecordingID()),
		Filename:    filename,
		ContentType: contentType,
		Length:      length,
		ChunkSize:   s.chunkSize,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.meta[rec.ID] = rec
	s.chunks[rec.ID] = chunks
	s.mu.Unlock()
	return rec, nil
}

func (s *MemoryRecordingStore) Get(ctx context.Context, id domain.RecordingID) (*domain.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.meta[id]
	if !ok {
		return nil, domain.ErrRecordingNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryRecordingStore) List(ctx context.Context) ([]*domain.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Recording, 0, len(s.meta))
	for _, rec := range s.meta {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryRecordingStore) Open(ctx context.Context, id domain.RecordingID) (io.ReadCloser, error) {
	s.mu.RLock()
	chunks, ok := s.chunks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrRecordingNotFound
	}

	readers := make([]io.Reader, len(chunks))
	for i, c := range chunks {
		readers[i] = bytes.NewReader(c)
	}
	return io.NopCloser(io.MultiReader(readers...)), nil
}

func (s *MemoryRecordingStore) Delete(ctx context.Context, id domain.RecordingID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meta[id]; !ok {
		return domain.ErrRecordingNotFound
	}
	delete(s.meta, id)
	delete(s.chunks, id)
	return nil
}

func (s *MemoryRecordingStore) Ping(ctx context.Context) error {
	return nil
}
