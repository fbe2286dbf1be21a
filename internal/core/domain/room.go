package domain

type RoomID string
type PeerID string
type ConnectionID string

// PeerRole is the role a peer holds inside a room.
type PeerRole string

const (
	RoleStreamer PeerRole = "streamer"
	RoleViewer   PeerRole = "viewer"
)

// Room tracks which peers are publishing and which are watching.
// A peer id appears in at most one of the two sets, and a room with
// both sets empty does not exist in the registry.
type Room struct {
	ID        RoomID
	Streamers map[PeerID]struct{}
	Viewers   map[PeerID]struct{}
}

func NewRoom(id RoomID) *Room {
	return &Room{
		ID:        id,
		Streamers: make(map[PeerID]struct{}),
		Viewers:   make(map[PeerID]struct{}),
	}
}

// Empty reports whether the room has no members in either role.
func (r *Room) Empty() bool {
	return len(r.Streamers) == 0 && len(r.Viewers) == 0
}

// Members returns all peer ids in the room, streamers first.
func (r *Room) Members() []PeerID {
	out := make([]PeerID, 0, len(r.Streamers)+len(r.Viewers))
	for id := range r.Streamers {
		out = append(out, id)
	}
	for id := range r.Viewers {
		out = append(out, id)
	}
	return out
}

// RoomSnapshot is a read-only view of room occupancy.
type RoomSnapshot struct {
	StreamerCount int `json:"streamerCount"`
	ViewerCount   int `json:"viewerCount"`
}
