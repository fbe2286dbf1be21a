package reliability

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/internal/infrastructure/repositories/memory"
	"streamcast/pkg/circuitbreaker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// brokenStore fails every call until fixed.
type brokenStore struct {
	ports.RecordingStore
	broken bool
	pings  int
}

var errBackend = errors.New("connection refused")

func (b *brokenStore) Ping(ctx context.Context) error {
	b.pings++
	if b.broken {
		return errBackend
	}
	return b.RecordingStore.Ping(ctx)
}

func (b *brokenStore) Get(ctx context.Context, id domain.RecordingID) (*domain.Recording, error) {
	if b.broken {
		return nil, errBackend
	}
	return b.RecordingStore.Get(ctx, id)
}

func testBreakerConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		OpenTimeout:      20 * time.Millisecond,
		HalfOpenMax:      2,
	}
}

func TestHealthyBackendPassesThrough(t *testing.T) {
	inner := memory.NewMemoryRecordingStore(0)
	store := NewResilientStore(inner, testBreakerConfig(), zap.NewNop().Sugar())

	rec, err := store.Upload(context.Background(), "clip.webm", "video/webm", strings.NewReader("payload"))
	require.NoError(t, err)

	got, err := store.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	require.NoError(t, store.Ping(context.Background()))
}

func TestBreakerOpensAndReportsUnavailable(t *testing.T) {
	inner := &brokenStore{RecordingStore: memory.NewMemoryRecordingStore(0), broken: true}
	store := NewResilientStore(inner, testBreakerConfig(), zap.NewNop().Sugar())

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, store.Ping(context.Background()), errBackend)
	}

	// Breaker is open now: the backend is no longer called and the
	// rejection surfaces as store unavailability.
	before := inner.pings
	err := store.Ping(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, before, inner.pings)

	_, err = store.Get(context.Background(), domain.RecordingID("whatever"))
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestBreakerRecoversAfterTimeout(t *testing.T) {
	inner := &brokenStore{RecordingStore: memory.NewMemoryRecordingStore(0), broken: true}
	store := NewResilientStore(inner, testBreakerConfig(), zap.NewNop().Sugar())

	for i := 0; i < 3; i++ {
		store.Ping(context.Background())
	}
	require.ErrorIs(t, store.Ping(context.Background()), domain.ErrStoreUnavailable)

	inner.broken = false
	time.Sleep(25 * time.Millisecond)

	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, store.Ping(context.Background()))
}

func TestMissingRecordingDoesNotTrip(t *testing.T) {
	inner := memory.NewMemoryRecordingStore(0)
	store := NewResilientStore(inner, testBreakerConfig(), zap.NewNop().Sugar())

	for i := 0; i < 10; i++ {
		_, err := store.Get(context.Background(), domain.RecordingID("missing"))
		require.ErrorIs(t, err, domain.ErrRecordingNotFound)
	}

	require.NoError(t, store.Ping(context.Background()))
}
