package webrtc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Config holds peer connection settings.
type Config struct {
	ICEServers []string
	PortRange  struct {
		Min uint16
		Max uint16
	}
}

// LocalTrack adapts a pion local track to the transport-neutral
// MediaTrack the services work with.
type LocalTrack struct {
	track webrtc.TrackLocal
}

func NewLocalTrack(track webrtc.TrackLocal) *LocalTrack {
	return &LocalTrack{track: track}
}

func (t *LocalTrack) Kind() string { return t.track.Kind().String() }
func (t *LocalTrack) ID() string   { return t.track.ID() }

// Unwrap returns the underlying pion track.
func (t *LocalTrack) Unwrap() webrtc.TrackLocal { return t.track }

// PionTransport wraps one pion peer connection behind the
// PeerTransport and TrackSender ports.
type PionTransport struct {
	pc     *webrtc.PeerConnection
	logger *zap.SugaredLogger

	// OnCandidate receives locally gathered candidates for publishing
	// through the signaling channel.
	OnCandidate func(candidate json.RawMessage)
	// OnConnected fires once the connection state reaches connected.
	OnConnected func()

	mu          sync.Mutex
	audioSender *webrtc.RTPSender
	videoSender *webrtc.RTPSender
	connected   bool
}

func NewPionTransport(cfg Config, logger *zap.SugaredLogger) (*PionTransport, error) {
	pcConfig := webrtc.Configuration{
		SDPSemantics: webrtc.SDPSemanticsUnifiedPlanWithFallback,
	}
	if len(cfg.ICEServers) > 0 {
		pcConfig.ICEServers = []webrtc.ICEServer{{URLs: cfg.ICEServers}}
	}

	settingEngine := webrtc.SettingEngine{}
	if cfg.PortRange.Min > 0 && cfg.PortRange.Max > 0 {
		if err := settingEngine.SetEphemeralUDPPortRange(cfg.PortRange.Min, cfg.PortRange.Max); err != nil {
			return nil, fmt.Errorf("failed to set port range: %w", err)
		}
	}

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	pc, err := api.NewPeerConnection(pcConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	t := &PionTransport{pc: pc, logger: logger}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || t.OnCandidate == nil {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			logger.Warnw("failed to marshal candidate", "error", err)
			return
		}
		t.OnCandidate(data)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Infow("peer connection state changed", "state", state)
		if state == webrtc.PeerConnectionStateConnected {
			t.mu.Lock()
			t.connected = true
			t.mu.Unlock()
			if t.OnConnected != nil {
				t.OnConnected()
			}
		}
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateDisconnected {
			t.mu.Lock()
			t.connected = false
			t.mu.Unlock()
		}
	})

	return t, nil
}

func (t *PionTransport) CreateOffer(ctx context.Context) (string, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create offer: %w", err)
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}
	return offer.SDP, nil
}

func (t *PionTransport) CreateAnswer(ctx context.Context) (string, error) {
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create answer: %w", err)
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}
	return answer.SDP, nil
}

func (t *PionTransport) SetRemoteDescription(ctx context.Context, kind domain.SignalType, sdp string) error {
	var sdpType webrtc.SDPType
	switch kind {
	case domain.SignalOffer:
		sdpType = webrtc.SDPTypeOffer
	case domain.SignalAnswer:
		sdpType = webrtc.SDPTypeAnswer
	default:
		return fmt.Errorf("unsupported description kind %q", kind)
	}
	return t.pc.SetRemoteDescription(webrtc.SessionDescription{Type: sdpType, SDP: sdp})
}

func (t *PionTransport) HasRemoteDescription() bool {
	return t.pc.RemoteDescription() != nil
}

func (t *PionTransport) AddCandidate(ctx context.Context, candidate json.RawMessage) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(candidate, &init); err != nil {
		// Some clients send the candidate line as a bare string.
		var line string
		if serr := json.Unmarshal(candidate, &line); serr != nil {
			return fmt.Errorf("malformed candidate: %w", err)
		}
		init = webrtc.ICECandidateInit{Candidate: line}
	}
	return t.pc.AddICECandidate(init)
}

func (t *PionTransport) Close() error {
	return t.pc.Close()
}

func (t *PionTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// ReplaceAudioTrack swaps the outgoing audio track in place. The first
// call attaches the track; later calls go through the sender so no
// renegotiation is needed.
func (t *PionTransport) ReplaceAudioTrack(track ports.MediaTrack) error {
	return t.replace(&t.audioSender, track)
}

// ReplaceVideoTrack swaps the outgoing video track; a nil track stops
// outgoing video (the sender keeps its slot in the session).
func (t *PionTransport) ReplaceVideoTrack(track ports.MediaTrack) error {
	return t.replace(&t.videoSender, track)
}

func (t *PionTransport) replace(sender **webrtc.RTPSender, track ports.MediaTrack) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var local webrtc.TrackLocal
	if track != nil {
		lt, ok := track.(*LocalTrack)
		if !ok {
			return fmt.Errorf("track %T is not a pion local track", track)
		}
		local = lt.Unwrap()
	}

	if *sender == nil {
		if local == nil {
			return nil
		}
		s, err := t.pc.AddTrack(local)
		if err != nil {
			return fmt.Errorf("failed to add track: %w", err)
		}
		*sender = s
		return nil
	}
	return (*sender).ReplaceTrack(local)
}

// AudioSender exposes the outbound audio sender for stats sampling.
func (t *PionTransport) AudioSender() *webrtc.RTPSender {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.audioSender
}

// OnTrack registers the inbound track handler.
func (t *PionTransport) OnTrack(fn func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	t.pc.OnTrack(fn)
}
