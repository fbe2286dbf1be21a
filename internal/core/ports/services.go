package ports

import (
	"context"
	"io"

	"streamcast/internal/core/domain"
)

// Departure describes one room a peer was removed from by Leave.
type Departure struct {
	Room               domain.RoomID
	Role               domain.PeerRole
	StreamersRemaining int
	ViewersRemaining   int
	RoomRemoved        bool
}

// RoomRegistry is the process-wide mapping from room to member sets.
// All mutating calls must come from a single goroutine (the signaling
// coordinator's event loop); none of them block.
type RoomRegistry interface {
	// JoinAsStreamer adds the peer as the room's streamer. Returns
	// domain.ErrStreamerPresent when the room already has one.
	JoinAsStreamer(room domain.RoomID, peer domain.PeerID) error
	// JoinAsViewer adds the peer to the room's viewer set. Idempotent.
	JoinAsViewer(room domain.RoomID, peer domain.PeerID) error
	// Leave removes the peer from every room it appears in and reports
	// each departure. Unknown peers are a no-op.
	Leave(peer domain.PeerID) []Departure
	// Snapshot returns current occupancy; ok is false for absent rooms.
	Snapshot(room domain.RoomID) (domain.RoomSnapshot, bool)
	// Members lists every peer currently in the room.
	Members(room domain.RoomID) []domain.PeerID
	// Streamers and Viewers list the respective role sets of the room.
	Streamers(room domain.RoomID) []domain.PeerID
	Viewers(room domain.RoomID) []domain.PeerID
	// RoomOf returns the room the peer is currently joined to.
	RoomOf(peer domain.PeerID) (domain.RoomID, bool)
	// RoomCount reports the number of live rooms.
	RoomCount() int
}

// Transcoder re-encodes a stored recording stream into w using an
// external encoding process. It streams end to end: src is pulled only
// as fast as the encoder accepts input, and output is produced only as
// fast as w accepts it. Cancelling ctx terminates the process.
type Transcoder interface {
	Transcode(ctx context.Context, src io.Reader, w io.Writer, preset domain.PresetName) error
	TranscodeAudio(ctx context.Context, src io.Reader, w io.Writer) error
}
