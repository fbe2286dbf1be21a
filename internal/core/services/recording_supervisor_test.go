package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyRecorder struct {
	mu         sync.Mutex
	active     bool
	startCalls int
	failStarts int // fail this many Start calls before succeeding
}

func (f *flakyRecorder) Start(src ports.CaptureSource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.failStarts > 0 {
		f.failStarts--
		return errors.New("encoder refused")
	}
	f.active = true
	return nil
}

func (f *flakyRecorder) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
	return nil
}

func (f *flakyRecorder) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func TestSupervisorStartStopLifecycle(t *testing.T) {
	rec := &flakyRecorder{}
	sup := NewRecordingSupervisor(rec, 1, testLogger())
	src := &fakeSource{audio: fakeTrack{kind: "audio", id: "a"}}

	assert.Equal(t, RecorderIdle, sup.State())
	require.NoError(t, sup.Start(src))
	assert.Equal(t, RecorderActive, sup.State())
	assert.True(t, sup.Active())

	require.NoError(t, sup.Stop(context.Background()))
	assert.Equal(t, RecorderIdle, sup.State())
	assert.False(t, sup.Active())
}

func TestSupervisorDoubleStartRejected(t *testing.T) {
	sup := NewRecordingSupervisor(&flakyRecorder{}, 1, testLogger())
	src := &fakeSource{}

	require.NoError(t, sup.Start(src))
	assert.ErrorIs(t, sup.Start(src), domain.ErrRecordingInProgress)
}

func TestSupervisorFaultRecoversWithinBudget(t *testing.T) {
	rec := &flakyRecorder{}
	sup := NewRecordingSupervisor(rec, 1, testLogger())
	src := &fakeSource{}
	require.NoError(t, sup.Start(src))

	var transitions []RecorderState
	sup.OnStateChange = func(from, to RecorderState) { transitions = append(transitions, to) }

	require.NoError(t, sup.HandleFault(context.Background(), errors.New("track ended")))

	assert.Equal(t, RecorderActive, sup.State())
	assert.Equal(t, []RecorderState{RecorderFaulted, RecorderRestarting, RecorderActive}, transitions)
	assert.Equal(t, 2, rec.startCalls)
}

func TestSupervisorStaysFaultedWhenBudgetExhausted(t *testing.T) {
	// One restart allowed after the fault; both the immediate attempt
	// and the single retry fail.
	rec := &flakyRecorder{}
	sup := NewRecordingSupervisor(rec, 1, testLogger())
	src := &fakeSource{}
	require.NoError(t, sup.Start(src))
	rec.failStarts = 2

	err := sup.HandleFault(context.Background(), errors.New("track ended"))
	require.Error(t, err)
	assert.Equal(t, RecorderFaulted, sup.State())
	// One immediate attempt plus one bounded retry, never more.
	assert.Equal(t, 3, rec.startCalls)
}

func TestSupervisorFaultIgnoredWhenNotActive(t *testing.T) {
	sup := NewRecordingSupervisor(&flakyRecorder{}, 1, testLogger())
	assert.NoError(t, sup.HandleFault(context.Background(), errors.New("spurious")))
	assert.Equal(t, RecorderIdle, sup.State())
}

func TestRecordingMIMETable(t *testing.T) {
	assert.Equal(t, "video/webm;codecs=vp8,opus", recordingMIMEForOS("linux"))
	assert.Equal(t, "video/mp4", recordingMIMEForOS("darwin"))
	assert.Equal(t, "video/webm", recordingMIMEForOS("plan9"))
	assert.NotEmpty(t, RecordingMIME())
}
