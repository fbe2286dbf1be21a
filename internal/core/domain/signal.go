package domain

import "encoding/json"

// SignalType is the negotiation payload kind carried inside an envelope.
type SignalType string

const (
	SignalOffer     SignalType = "offer"
	SignalAnswer    SignalType = "answer"
	SignalCandidate SignalType = "candidate"
)

// SignalData is the inner negotiation payload: a session description for
// offer/answer, or a connectivity candidate.
type SignalData struct {
	Type      SignalType      `json:"type"`
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// SignalEnvelope is a relayed negotiation message. The connection id is
// minted by the streamer at session start and echoed by all parties so
// that overlapping negotiation attempts can be told apart.
type SignalEnvelope struct {
	ConnectionID ConnectionID `json:"connectionId"`
	Data         SignalData   `json:"data"`
	FromPeer     PeerID       `json:"fromPeer"`
}

// NegotiationState is the per-session negotiation progress on a peer.
type NegotiationState string

const (
	NegotiationIdle           NegotiationState = "idle"
	NegotiationOfferSent      NegotiationState = "offer-sent"
	NegotiationAnswerReceived NegotiationState = "answer-received"
	NegotiationConnected      NegotiationState = "connected"
)
