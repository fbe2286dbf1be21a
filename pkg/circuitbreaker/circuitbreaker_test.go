package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func testConfig() Config {
	return Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenTimeout:      20 * time.Millisecond,
		HalfOpenMax:      2,
	}
}

func TestClosedPassesThrough(t *testing.T) {
	b := New(testConfig())

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, StateClosed, b.State())
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b := New(testConfig())

	for i := 0; i < 3; i++ {
		err := b.Execute(func() error { return errBoom })
		require.ErrorIs(t, err, errBoom)
	}

	assert.Equal(t, StateOpen, b.State())

	err := b.Execute(func() error {
		t.Fatal("call should not run while open")
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := New(testConfig())

	b.Execute(func() error { return errBoom })
	b.Execute(func() error { return errBoom })
	b.Execute(func() error { return nil })
	b.Execute(func() error { return errBoom })
	b.Execute(func() error { return errBoom })

	assert.Equal(t, StateClosed, b.State())
}

func TestRecoversThroughHalfOpen(t *testing.T) {
	b := New(testConfig())

	for i := 0; i < 3; i++ {
		b.Execute(func() error { return errBoom })
	}
	require.Equal(t, StateOpen, b.State())

	time.Sleep(25 * time.Millisecond)

	// First probe moves the breaker to half-open.
	require.NoError(t, b.Execute(func() error { return nil }))
	require.NoError(t, b.Execute(func() error { return nil }))

	assert.Equal(t, StateClosed, b.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := New(testConfig())

	for i := 0; i < 3; i++ {
		b.Execute(func() error { return errBoom })
	}
	time.Sleep(25 * time.Millisecond)

	err := b.Execute(func() error { return errBoom })
	require.ErrorIs(t, err, errBoom)

	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Execute(func() error { return nil }), ErrOpen)
}

func TestIsFailureFilter(t *testing.T) {
	errIgnored := errors.New("not found")

	cfg := testConfig()
	cfg.IsFailure = func(err error) bool {
		return err != nil && !errors.Is(err, errIgnored)
	}
	b := New(cfg)

	for i := 0; i < 10; i++ {
		err := b.Execute(func() error { return errIgnored })
		require.ErrorIs(t, err, errIgnored)
	}

	assert.Equal(t, StateClosed, b.State())
}

func TestDoReturnsResult(t *testing.T) {
	b := New(testConfig())

	v, err := Do(b, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	for i := 0; i < 3; i++ {
		Do(b, func() (int, error) { return 0, errBoom })
	}

	_, err = Do(b, func() (int, error) { return 7, nil })
	assert.ErrorIs(t, err, ErrOpen)
}
