package reliability

import (
	"context"
	"errors"
	"fmt"
	"io"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/pkg/circuitbreaker"

	"go.uber.org/zap"
)

// ResilientStore wraps a recording store backend with a circuit breaker.
// When the backend keeps failing the breaker opens and calls are rejected
// immediately instead of piling up blocked handlers; rejected calls report
// domain.ErrStoreUnavailable so the HTTP layer answers 503.
type ResilientStore struct {
	inner   ports.RecordingStore
	breaker *circuitbreaker.Breaker
	logger  *zap.SugaredLogger
}

var _ ports.RecordingStore = (*ResilientStore)(nil)

// NewResilientStore creates a breaker-guarded view of inner. A missing
// recording is a normal outcome and never counts against the breaker.
func NewResilientStore(inner ports.RecordingStore, cfg circuitbreaker.Config, logger *zap.SugaredLogger) *ResilientStore {
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, domain.ErrRecordingNotFound)
		}
	}

	breaker := circuitbreaker.New(cfg)
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Infow("recording store circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return &ResilientStore{
		inner:   inner,
		breaker: breaker,
		logger:  logger,
	}
}

func (s *ResilientStore) Upload(ctx context.Context, filename, contentType string, r io.Reader) (*domain.Recording, error) {
	rec, err := circuitbreaker.Do(s.breaker, func() (*domain.Recording, error) {
		return s.inner.Upload(ctx, filename, contentType, r)
	})
	return rec, s.mapErr(err)
}

func (s *ResilientStore) Get(ctx context.Context, id domain.RecordingID) (*domain.Recording, error) {
	rec, err := circuitbreaker.Do(s.breaker, func() (*domain.Recording, error) {
		return s.inner.Get(ctx, id)
	})
	return rec, s.mapErr(err)
}

func (s *ResilientStore) List(ctx context.Context) ([]*domain.Recording, error) {
	recs, err := circuitbreaker.Do(s.breaker, func() ([]*domain.Recording, error) {
		return s.inner.List(ctx)
	})
	return recs, s.mapErr(err)
}

func (s *ResilientStore) Open(ctx context.Context, id domain.RecordingID) (io.ReadCloser, error) {
	rc, err := circuitbreaker.Do(s.breaker, func() (io.ReadCloser, error) {
		return s.inner.Open(ctx, id)
	})
	return rc, s.mapErr(err)
}

func (s *ResilientStore) Delete(ctx context.Context, id domain.RecordingID) error {
	return s.mapErr(s.breaker.Execute(func() error {
		return s.inner.Delete(ctx, id)
	}))
}

func (s *ResilientStore) Ping(ctx context.Context) error {
	return s.mapErr(s.breaker.Execute(func() error {
		return s.inner.Ping(ctx)
	}))
}

func (s *ResilientStore) mapErr(err error) error {
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%w: circuit breaker open", domain.ErrStoreUnavailable)
	}
	return err
}
