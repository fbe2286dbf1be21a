package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/pkg/cache"
	"streamcast/pkg/optimize"
	"streamcast/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "streamcast:recording:"
const idSetKey = "streamcast:recordings"

// RedisRecordingStore persists recordings as an ordered run of chunk
// keys plus one metadata key. The metadata is written last, after every
// chunk is in place, so a recording is either fully visible or absent;
// readers key chunk count off the committed length.
type RedisRecordingStore struct {
	client    *redis.Client
	chunkSize int
	buffers   *optimize.BytePool

	// meta shortcuts the metadata GET on hot recordings. Metadata is
	// immutable once committed, so a short TTL only bounds how long a
	// deleted id can linger on other instances.
	meta *cache.Cache[domain.RecordingID, *domain.Recording]
}

const metaCacheTTL = 30 * time.Second

func NewRedisRecordingStore(client *redis.Client, chunkSize int) ports.RecordingStore {
	if chunkSize <= 0 {
		chunkSize = 255 * 1024
	}
	return &RedisRecordingStore{
		client:    client,
		chunkSize: chunkSize,
		buffers:   optimize.NewBytePool(chunkSize),
		meta:      cache.New[domain.RecordingID, *domain.Recording](metaCacheTTL),
	}
}

func metaKey(id domain.RecordingID) string {
	return keyPrefix + string(id) + ":meta"
}

func chunkKey(id domain.RecordingID, n int) string {
	return fmt.Sprintf("%s%s:chunk:%d", keyPrefix, id, n)
}

func chunkCount(rec *domain.Recording) int {
	if rec.Length == 0 {
		return 0
	}
	return int((rec.Length + int64(rec.ChunkSize) - 1) / int64(rec.ChunkSize))
}

func (s *RedisRecordingStore) Upload(ctx context.Context, filename, contentType string, r io.Reader) (*domain.Recording, error) {
	id := domain.RecordingID(utils.GenerateRecordingID())

	var length int64
	var written int
	buf := s.buffers.Get()
	defer s.buffers.Put(buf)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if serr := s.client.Set(ctx, chunkKey(id, written), buf[:n], 0).Err(); serr != nil {
				s.reapChunks(ctx, id, written)
				return nil, fmt.Errorf("failed to write chunk: %w", serr)
			}
			written++
			length += int64(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			// Source failed mid-stream: nothing was committed, reap
			// the orphaned chunks.
			s.reapChunks(ctx, id, written)
			return nil, err
		}
	}

	rec := &domain.Recording{
		ID:          id,
		Filename:    filename,
		ContentType: contentType,
		Length:      length,
		ChunkSize:   s.chunkSize,
		CreatedAt:   time.Now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		s.reapChunks(ctx, id, written)
		return nil, fmt.Errorf("failed to marshal recording: %w", err)
	}

	if err := s.client.Set(ctx, metaKey(id), data, 0).Err(); err != nil {
		s.reapChunks(ctx, id, written)
		return nil, fmt.Errorf("failed to commit recording: %w", err)
	}
	if err := s.client.SAdd(ctx, idSetKey, string(id)).Err(); err != nil {
		return nil, fmt.Errorf("failed to index recording: %w", err)
	}
	s.meta.Set(id, rec)
	return rec, nil
}

// reapChunks removes orphaned chunk keys after a failed upload. Best
// effort: a fresh background context so a cancelled request still
// cleans up.
func (s *RedisRecordingStore) reapChunks(_ context.Context, id domain.RecordingID, n int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < n; i++ {
		s.client.Del(ctx, chunkKey(id, i))
	}
}

func (s *RedisRecordingStore) Get(ctx context.Context, id domain.RecordingID) (*domain.Recording, error) {
	if rec, ok := s.meta.Get(id); ok {
		return rec, nil
	}

	data, err := s.client.Get(ctx, metaKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrRecordingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}

	var rec domain.Recording
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recording: %w", err)
	}
	s.meta.Set(id, &rec)
	return &rec, nil
}

func (s *RedisRecordingStore) List(ctx context.Context) ([]*domain.Recording, error) {
	ids, err := s.client.SMembers(ctx, idSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}

	out := make([]*domain.Recording, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, domain.RecordingID(id))
		if err == domain.ErrRecordingNotFound {
			// Concurrent delete between SMembers and Get.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *RedisRecordingStore) Open(ctx context.Context, id domain.RecordingID) (io.ReadCloser, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &chunkReader{ctx: ctx, store: s, id: id, remaining: chunkCount(rec)}, nil
}

func (s *RedisRecordingStore) Delete(ctx context.Context, id domain.RecordingID) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	// Metadata goes first so readers stop seeing the recording before
	// its chunks disappear.
	s.meta.Delete(id)
	if err := s.client.Del(ctx, metaKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete recording: %w", err)
	}
	if err := s.client.SRem(ctx, idSetKey, string(id)).Err(); err != nil {
		return fmt.Errorf("failed to unindex recording: %w", err)
	}
	for i := 0; i < chunkCount(rec); i++ {
		if err := s.client.Del(ctx, chunkKey(id, i)).Err(); err != nil {
			return fmt.Errorf("failed to delete chunk: %w", err)
		}
	}
	return nil
}

func (s *RedisRecordingStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// chunkReader streams stored chunks one GET at a time, so the consumer
// drives how fast data leaves Redis.
type chunkReader struct {
	ctx       context.Context
	store     *RedisRecordingStore
	id        domain.RecordingID
	next      int
	remaining int
	buf       []byte
	closed    bool
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, io.ErrClosedPipe
	}
	for len(r.buf) == 0 {
		if r.remaining == 0 {
			return 0, io.EOF
		}
		data, err := r.store.client.Get(r.ctx, chunkKey(r.id, r.next)).Bytes()
		if err == redis.Nil {
			return 0, fmt.Errorf("missing chunk %d: %w", r.next, domain.ErrRecordingNotFound)
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read chunk: %w", err)
		}
		r.buf = data
		r.next++
		r.remaining--
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *chunkReader) Close() error {
	r.closed = true
	r.buf = nil
	return nil
}
