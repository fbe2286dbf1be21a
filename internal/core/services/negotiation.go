package services

import (
	"context"
	"encoding/json"
	"sync"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"

	"go.uber.org/zap"
)

// NegotiationSession drives the description/candidate exchange for one
// peer connection. A streamer session mints the connection id and
// starts with an offer; a viewer session adopts the connection id from
// every offer it sees, so the latest offer supersedes the negotiation
// in progress and a re-offering streamer can always reach it. Non-offer
// envelopes tagged with any other connection id are dropped without
// side effects, so a stale negotiation attempt cannot corrupt the
// current one.
type NegotiationSession struct {
	role      domain.PeerRole
	room      domain.RoomID
	self      domain.PeerID
	transport ports.PeerTransport
	publisher ports.SignalPublisher
	logger    *zap.SugaredLogger

	// Status, when set, receives non-fatal negotiation problems
	// (malformed remote descriptions, rejected answers). The session
	// state is unchanged when it fires.
	Status func(msg string)

	mu         sync.Mutex
	processing bool
	backlog    []domain.SignalEnvelope
	connID     domain.ConnectionID
	state      domain.NegotiationState
	pending    []json.RawMessage
}

// NewStreamerSession creates the offering side of a negotiation. The
// connection id is minted by the caller and carried on every envelope.
func NewStreamerSession(room domain.RoomID, self domain.PeerID, connID domain.ConnectionID, transport ports.PeerTransport, publisher ports.SignalPublisher, logger *zap.SugaredLogger) *NegotiationSession {
	return &NegotiationSession{
		role:      domain.RoleStreamer,
		room:      room,
		self:      self,
		connID:    connID,
		transport: transport,
		publisher: publisher,
		logger:    logger,
		state:     domain.NegotiationIdle,
	}
}

// NewViewerSession creates the answering side. It has no connection id
// until the first offer arrives.
func NewViewerSession(room domain.RoomID, self domain.PeerID, transport ports.PeerTransport, publisher ports.SignalPublisher, logger *zap.SugaredLogger) *NegotiationSession {
	return &NegotiationSession{
		role:      domain.RoleViewer,
		room:      room,
		self:      self,
		transport: transport,
		publisher: publisher,
		logger:    logger,
		state:     domain.NegotiationIdle,
	}
}

func (s *NegotiationSession) State() domain.NegotiationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *NegotiationSession) ConnectionID() domain.ConnectionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connID
}

// StartOffer creates and publishes the local offer. Streamer side only.
func (s *NegotiationSession) StartOffer(ctx context.Context) error {
	s.mu.Lock()
	if s.role != domain.RoleStreamer || s.state != domain.NegotiationIdle {
		s.mu.Unlock()
		return domain.ErrStaleConnectionID
	}
	s.mu.Unlock()

	sdp, err := s.transport.CreateOffer(ctx)
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(s.room, s.connID, domain.SignalData{Type: domain.SignalOffer, SDP: sdp}); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = domain.NegotiationOfferSent
	s.mu.Unlock()
	s.logger.Debugw("offer sent", "room", s.room, "connection_id", s.connID)
	return nil
}

// HandleSignal processes one inbound envelope. Handling is
// single-flight per session: envelopes arriving while one is being
// processed are queued and drained in order by the active call, so
// transport operations never interleave.
func (s *NegotiationSession) HandleSignal(ctx context.Context, env domain.SignalEnvelope) {
	s.mu.Lock()
	if s.processing {
		s.backlog = append(s.backlog, env)
		s.mu.Unlock()
		return
	}
	s.processing = true
	s.mu.Unlock()

	for {
		s.process(ctx, env)

		s.mu.Lock()
		if len(s.backlog) == 0 {
			s.processing = false
			s.mu.Unlock()
			return
		}
		env = s.backlog[0]
		s.backlog = s.backlog[1:]
		s.mu.Unlock()
	}
}

func (s *NegotiationSession) process(ctx context.Context, env domain.SignalEnvelope) {
	s.mu.Lock()
	if s.role == domain.RoleViewer && env.Data.Type == domain.SignalOffer && env.ConnectionID != s.connID {
		// The latest offer wins. Candidates queued for the superseded
		// connection no longer apply.
		s.connID = env.ConnectionID
		s.pending = nil
	}
	if env.ConnectionID != s.connID {
		s.mu.Unlock()
		s.logger.Debugw("dropping envelope for foreign connection",
			"room", s.room, "have", s.connID, "got", env.ConnectionID)
		return
	}
	s.mu.Unlock()

	switch env.Data.Type {
	case domain.SignalOffer:
		s.handleOffer(ctx, env)
	case domain.SignalAnswer:
		s.handleAnswer(ctx, env)
	case domain.SignalCandidate:
		s.handleCandidate(ctx, env)
	default:
		s.logger.Warnw("unknown signal type", "type", env.Data.Type, "from", env.FromPeer)
	}
}

func (s *NegotiationSession) handleOffer(ctx context.Context, env domain.SignalEnvelope) {
	if s.role != domain.RoleViewer {
		s.logger.Debugw("ignoring offer on offering side", "from", env.FromPeer)
		return
	}

	if err := s.transport.SetRemoteDescription(ctx, domain.SignalOffer, env.Data.SDP); err != nil {
		s.report("could not apply remote offer: " + err.Error())
		return
	}
	s.flushCandidates(ctx)

	sdp, err := s.transport.CreateAnswer(ctx)
	if err != nil {
		s.report("could not create answer: " + err.Error())
		return
	}
	if err := s.publisher.Publish(s.room, env.ConnectionID, domain.SignalData{Type: domain.SignalAnswer, SDP: sdp}); err != nil {
		s.logger.Errorw("failed to publish answer", "room", s.room, "error", err)
		return
	}

	s.mu.Lock()
	s.state = domain.NegotiationAnswerReceived
	s.mu.Unlock()
}

func (s *NegotiationSession) handleAnswer(ctx context.Context, env domain.SignalEnvelope) {
	s.mu.Lock()
	accept := s.role == domain.RoleStreamer && s.state == domain.NegotiationOfferSent
	s.mu.Unlock()
	if !accept {
		s.logger.Debugw("ignoring answer out of sequence",
			"from", env.FromPeer, "state", s.State())
		return
	}

	if err := s.transport.SetRemoteDescription(ctx, domain.SignalAnswer, env.Data.SDP); err != nil {
		s.report("could not apply remote answer: " + err.Error())
		return
	}

	s.mu.Lock()
	s.state = domain.NegotiationAnswerReceived
	s.mu.Unlock()
	s.flushCandidates(ctx)
}

func (s *NegotiationSession) handleCandidate(ctx context.Context, env domain.SignalEnvelope) {
	if !s.transport.HasRemoteDescription() {
		s.mu.Lock()
		s.pending = append(s.pending, env.Data.Candidate)
		s.mu.Unlock()
		return
	}
	if err := s.transport.AddCandidate(ctx, env.Data.Candidate); err != nil {
		s.logger.Warnw("rejected candidate", "from", env.FromPeer, "error", err)
	}
}

// flushCandidates applies queued candidates in arrival order. A bad
// candidate is skipped; the rest still go through.
func (s *NegotiationSession) flushCandidates(ctx context.Context) {
	s.mu.Lock()
	queued := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, c := range queued {
		if err := s.transport.AddCandidate(ctx, c); err != nil {
			s.logger.Warnw("rejected queued candidate", "error", err)
		}
	}
}

// MarkConnected records transport-level connectivity. Called from the
// peer connection's state callback once media can flow.
func (s *NegotiationSession) MarkConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.NegotiationAnswerReceived {
		s.state = domain.NegotiationConnected
	}
}

// Close tears down the underlying transport. Queued envelopes and
// candidates are discarded.
func (s *NegotiationSession) Close() error {
	s.mu.Lock()
	s.backlog = nil
	s.pending = nil
	s.mu.Unlock()
	return s.transport.Close()
}

func (s *NegotiationSession) report(msg string) {
	s.logger.Warnw("negotiation problem", "room", s.room, "peer", s.self, "status", msg)
	if s.Status != nil {
		s.Status(msg)
	}
}
