package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"

	"go.uber.org/zap"
)

// ChoosePreset maps one transport sample to a quality tier. The rules
// are checked worst tier first; all comparisons are strict, so a round
// trip of exactly 100ms with otherwise clean stats still selects high.
func ChoosePreset(s domain.NetworkSample) domain.PresetName {
	switch {
	case s.RoundTripTimeMs > 500 || s.PacketLossPercent > 10 || s.BandwidthMbps < 0.5:
		return domain.PresetAudioOnly
	case s.RoundTripTimeMs > 200 || s.PacketLossPercent > 5 || s.BandwidthMbps < 1.5:
		return domain.PresetLow
	case s.RoundTripTimeMs > 100 || s.PacketLossPercent > 2 || s.BandwidthMbps < 3:
		return domain.PresetMedium
	default:
		return domain.PresetHigh
	}
}

// QualityControllerConfig tunes the sampling loop.
type QualityControllerConfig struct {
	// LiveInterval is the sampling period while a viewer connection is
	// up; RecordingInterval applies when only a recording is running.
	LiveInterval      time.Duration
	RecordingInterval time.Duration
	// RecordCentric rejects manual preset changes while a recording is
	// active instead of restarting the recorder mid-file.
	RecordCentric bool
}

// QualityController owns the publisher's capture source and adapts its
// preset to measured network conditions. Preset changes re-acquire the
// capture device under the new constraints and substitute the outgoing
// tracks in place, without renegotiation. A recording in progress is
// stopped and restarted against the new source; the resulting
// discontinuity is accepted.
type QualityController struct {
	device   ports.CaptureDevice
	sender   ports.TrackSender
	stats    ports.StatsProvider
	recorder ports.Recorder
	cfg      QualityControllerConfig
	logger   *zap.SugaredLogger

	// OnPresetChange, when set, observes every applied switch.
	OnPresetChange func(from, to domain.PresetName)
	// Status receives non-fatal degradation notices, such as a failed
	// capture re-acquisition that left the previous tracks running.
	Status func(msg string)

	mu      sync.Mutex
	current domain.PresetName
	source  ports.CaptureSource
	running bool

	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
}

// NewQualityController wires a controller over the given capture and
// transport ports. recorder may be nil when the session never records.
func NewQualityController(device ports.CaptureDevice, sender ports.TrackSender, stats ports.StatsProvider, recorder ports.Recorder, cfg QualityControllerConfig, logger *zap.SugaredLogger) *QualityController {
	if cfg.LiveInterval <= 0 {
		cfg.LiveInterval = 5 * time.Second
	}
	if cfg.RecordingInterval <= 0 {
		cfg.RecordingInterval = 10 * time.Second
	}
	return &QualityController{
		device:   device,
		sender:   sender,
		stats:    stats,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start acquires the initial capture source and arms the sampling loop.
func (c *QualityController) Start(ctx context.Context, initial domain.PresetName) error {
	preset, ok := domain.Preset(initial)
	if !ok {
		return fmt.Errorf("unknown preset %q", initial)
	}

	src, err := c.device.Acquire(ctx, preset)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCaptureFailed, err)
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		src.Stop()
		return fmt.Errorf("quality controller already started")
	}
	c.current = initial
	c.source = src
	c.running = true
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	if err := c.attachTracks(src, preset); err != nil {
		c.Stop()
		return err
	}

	go c.run(loopCtx)
	return nil
}

// Stop disarms the sampling loop and releases the capture source.
// Idempotent; the loop context is cancelled exactly once.
func (c *QualityController) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		cancel := c.cancel
		src := c.source
		c.source = nil
		c.running = false
		c.mu.Unlock()

		if cancel != nil {
			cancel()
			<-c.done
		}
		if src != nil {
			src.Stop()
		}
	})
}

// Current returns the preset the capture currently runs under.
func (c *QualityController) Current() domain.PresetName {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Source exposes the live capture source, for recorder wiring.
func (c *QualityController) Source() ports.CaptureSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// SetPreset applies a manual tier selection through the same path the
// sampling loop uses. In record-centric mode a change is refused while
// a recording is active.
func (c *QualityController) SetPreset(ctx context.Context, name domain.PresetName) error {
	if !domain.ValidPreset(name) {
		return fmt.Errorf("unknown preset %q", name)
	}
	if c.cfg.RecordCentric && c.recorder != nil && c.recorder.Active() {
		return domain.ErrRecordingInProgress
	}
	return c.applyPreset(ctx, name)
}

func (c *QualityController) run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.interval()):
		}

		sample, err := c.stats.Sample(ctx)
		if err != nil {
			c.logger.Debugw("stats sample failed", "error", err)
			continue
		}

		target := ChoosePreset(sample)
		if target == c.Current() {
			continue
		}
		c.logger.Infow("network conditions changed",
			"rtt_ms", sample.RoundTripTimeMs,
			"loss_pct", sample.PacketLossPercent,
			"bandwidth_mbps", sample.BandwidthMbps,
			"target", target)
		if err := c.applyPreset(ctx, target); err != nil {
			c.report(fmt.Sprintf("preset switch to %s failed: %v", target, err))
		}
	}
}

func (c *QualityController) interval() time.Duration {
	if c.recorder != nil && c.recorder.Active() && !c.sender.Connected() {
		return c.cfg.RecordingInterval
	}
	return c.cfg.LiveInterval
}

// applyPreset swaps the capture source. The new source is acquired
// before the old one is touched, so a failed acquisition leaves the
// running tracks untouched.
func (c *QualityController) applyPreset(ctx context.Context, name domain.PresetName) error {
	c.mu.Lock()
	if name == c.current {
		c.mu.Unlock()
		return nil
	}
	old := c.source
	from := c.current
	c.mu.Unlock()

	preset, _ := domain.Preset(name)
	src, err := c.device.Acquire(ctx, preset)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCaptureFailed, err)
	}

	wasRecording := c.recorder != nil && c.recorder.Active()
	if wasRecording {
		if err := c.recorder.Stop(ctx); err != nil {
			c.logger.Warnw("recorder stop before preset switch failed", "error", err)
		}
	}

	if err := c.attachTracks(src, preset); err != nil {
		src.Stop()
		if wasRecording && old != nil {
			if rerr := c.recorder.Start(old); rerr != nil {
				c.logger.Errorw("could not resume recording after failed switch", "error", rerr)
			}
		}
		return err
	}

	c.mu.Lock()
	c.source = src
	c.current = name
	c.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	if wasRecording {
		if err := c.recorder.Start(src); err != nil {
			c.report(fmt.Sprintf("recording did not resume after switch to %s: %v", name, err))
		}
	}

	c.logger.Infow("preset applied", "from", from, "to", name)
	if c.OnPresetChange != nil {
		c.OnPresetChange(from, name)
	}
	return nil
}

func (c *QualityController) attachTracks(src ports.CaptureSource, preset domain.QualityPreset) error {
	if err := c.sender.ReplaceAudioTrack(src.AudioTrack()); err != nil {
		return fmt.Errorf("replace audio track: %w", err)
	}
	var video ports.MediaTrack
	if preset.HasVideo() {
		video = src.VideoTrack()
	}
	if err := c.sender.ReplaceVideoTrack(video); err != nil {
		return fmt.Errorf("replace video track: %w", err)
	}
	return nil
}

func (c *QualityController) report(msg string) {
	c.logger.Warnw("quality degradation", "status", msg)
	if c.Status != nil {
		c.Status(msg)
	}
}
