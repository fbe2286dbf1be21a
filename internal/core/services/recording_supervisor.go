package services

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/pkg/retry"

	"go.uber.org/zap"
)

// RecorderState is the supervisor's lifecycle position.
type RecorderState string

const (
	RecorderIdle       RecorderState = "idle"
	RecorderActive     RecorderState = "active"
	RecorderFaulted    RecorderState = "faulted"
	RecorderRestarting RecorderState = "restarting"
)

// recordingMIMEs is the per-platform container capability table,
// resolved once at startup rather than probed per recording. The first
// entry of each list is preferred.
var recordingMIMEs = map[string][]string{
	"linux":   {"video/webm;codecs=vp8,opus", "video/webm"},
	"darwin":  {"video/mp4", "video/webm;codecs=vp8,opus"},
	"windows": {"video/webm;codecs=vp8,opus", "video/webm", "video/mp4"},
}

var defaultRecordingMIME = "video/webm"

// RecordingMIME returns the preferred recording container for the
// current platform.
func RecordingMIME() string {
	return recordingMIMEForOS(runtime.GOOS)
}

func recordingMIMEForOS(goos string) string {
	if mimes, ok := recordingMIMEs[goos]; ok && len(mimes) > 0 {
		return mimes[0]
	}
	return defaultRecordingMIME
}

// RecordingSupervisor keeps one recorder alive through transient
// faults. A fault moves the supervisor to faulted, then through
// restarting back to active if a bounded number of restart attempts
// succeeds; exhausting the attempts leaves it faulted for the caller
// to surface. Restarts never recurse: each fault consumes attempts
// from its own bounded budget.
type RecordingSupervisor struct {
	recorder ports.Recorder
	retryCfg retry.Config
	logger   *zap.SugaredLogger

	// OnStateChange, when set, observes every transition.
	OnStateChange func(from, to RecorderState)

	mu     sync.Mutex
	state  RecorderState
	source ports.CaptureSource
}

// NewRecordingSupervisor builds a supervisor around recorder.
// maxRestarts bounds the restart attempts per fault; values below zero
// fall back to one.
func NewRecordingSupervisor(recorder ports.Recorder, maxRestarts int, logger *zap.SugaredLogger) *RecordingSupervisor {
	if maxRestarts < 0 {
		maxRestarts = 1
	}
	return &RecordingSupervisor{
		recorder: recorder,
		retryCfg: retry.Config{
			Enabled:      true,
			MaxAttempts:  maxRestarts,
			InitialDelay: retry.DefaultConfig().InitialDelay,
			MaxDelay:     retry.DefaultConfig().MaxDelay,
			Multiplier:   retry.DefaultConfig().Multiplier,
		},
		logger: logger,
		state:  RecorderIdle,
	}
}

// State returns the current lifecycle position.
func (s *RecordingSupervisor) State() RecorderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins recording src. Only valid from idle or faulted.
func (s *RecordingSupervisor) Start(src ports.CaptureSource) error {
	s.mu.Lock()
	if s.state == RecorderActive || s.state == RecorderRestarting {
		s.mu.Unlock()
		return domain.ErrRecordingInProgress
	}
	s.source = src
	s.mu.Unlock()

	if err := s.recorder.Start(src); err != nil {
		s.transition(RecorderFaulted)
		return err
	}
	s.transition(RecorderActive)
	return nil
}

// Stop ends the recording cleanly and returns the supervisor to idle.
func (s *RecordingSupervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != RecorderActive {
		s.mu.Unlock()
		return nil
	}
	s.source = nil
	s.mu.Unlock()

	err := s.recorder.Stop(ctx)
	s.transition(RecorderIdle)
	return err
}

// Active reports whether a recording is currently running.
func (s *RecordingSupervisor) Active() bool {
	return s.State() == RecorderActive
}

// HandleFault reacts to an unexpected recorder stop. It attempts the
// bounded restart sequence against the last source; if every attempt
// fails the supervisor stays faulted and the final error is returned.
func (s *RecordingSupervisor) HandleFault(ctx context.Context, cause error) error {
	s.mu.Lock()
	if s.state != RecorderActive {
		s.mu.Unlock()
		return nil
	}
	src := s.source
	s.mu.Unlock()

	s.logger.Warnw("recorder fault", "error", cause)
	s.transition(RecorderFaulted)

	if src == nil {
		return fmt.Errorf("recorder faulted with no source: %w", cause)
	}

	s.transition(RecorderRestarting)
	err := retry.Retry(ctx, s.retryCfg, func() error {
		return s.recorder.Start(src)
	})
	if err != nil {
		s.transition(RecorderFaulted)
		return fmt.Errorf("recorder restart failed: %w", err)
	}

	s.transition(RecorderActive)
	s.logger.Infow("recorder restarted after fault")
	return nil
}

func (s *RecordingSupervisor) transition(to RecorderState) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()
	if from != to && s.OnStateChange != nil {
		s.OnStateChange(from, to)
	}
}
