package ports

import (
	"context"
	"encoding/json"

	"streamcast/internal/core/domain"
)

// SignalPublisher sends negotiation data to the rest of a room through
// the signaling channel.
type SignalPublisher interface {
	Publish(room domain.RoomID, connID domain.ConnectionID, data domain.SignalData) error
}

// PeerTransport is the boundary to the peer-connection primitive of the
// underlying media API. Implementations wrap one live peer connection.
type PeerTransport interface {
	CreateOffer(ctx context.Context) (string, error)
	CreateAnswer(ctx context.Context) (string, error)
	SetRemoteDescription(ctx context.Context, kind domain.SignalType, sdp string) error
	// HasRemoteDescription reports whether a remote description has been
	// applied; candidates arriving before that must be queued.
	HasRemoteDescription() bool
	AddCandidate(ctx context.Context, candidate json.RawMessage) error
	Close() error
}

// MediaTrack is an opaque live capture track.
type MediaTrack interface {
	Kind() string
	ID() string
}

// CaptureSource is one acquired capture session. Stop releases the
// underlying device tracks; the source is unusable afterwards.
type CaptureSource interface {
	AudioTrack() MediaTrack
	// VideoTrack returns nil for an audio-only acquisition.
	VideoTrack() MediaTrack
	Stop()
}

// CaptureDevice acquires capture sources under a preset's constraints.
type CaptureDevice interface {
	Acquire(ctx context.Context, preset domain.QualityPreset) (CaptureSource, error)
}

// TrackSender substitutes outgoing tracks of a live negotiated session
// in place, without renegotiation.
type TrackSender interface {
	ReplaceAudioTrack(track MediaTrack) error
	// ReplaceVideoTrack with a nil track removes the outgoing video.
	ReplaceVideoTrack(track MediaTrack) error
	Connected() bool
}

// Recorder captures a source into a recording sink.
type Recorder interface {
	Start(src CaptureSource) error
	Stop(ctx context.Context) error
	Active() bool
}

// StatsProvider samples transport-level counters of a live session.
type StatsProvider interface {
	Sample(ctx context.Context) (domain.NetworkSample, error)
}
