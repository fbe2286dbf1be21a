package services

import (
	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
)

// RoomRegistry owns the room table. It is deliberately not locked: every
// mutation happens on the signaling coordinator's event loop goroutine,
// so the single-writer property makes the plain maps race-free.
type RoomRegistry struct {
	rooms      map[domain.RoomID]*domain.Room
	membership map[domain.PeerID]domain.RoomID
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:      make(map[domain.RoomID]*domain.Room),
		membership: make(map[domain.PeerID]domain.RoomID),
	}
}

var _ ports.RoomRegistry = (*RoomRegistry)(nil)

func (r *RoomRegistry) room(id domain.RoomID) *domain.Room {
	room, ok := r.rooms[id]
	if !ok {
		room = domain.NewRoom(id)
		r.rooms[id] = room
	}
	return room
}

// JoinAsStreamer adds the peer as the room's single streamer. A join is
// idempotent for the peer already streaming in that room; a different
// active streamer causes domain.ErrStreamerPresent. A peer joined
// elsewhere is moved (single active session per connection).
func (r *RoomRegistry) JoinAsStreamer(roomID domain.RoomID, peer domain.PeerID) error {
	room := r.rooms[roomID]
	if room != nil {
		if _, ok := room.Streamers[peer]; ok {
			return nil
		}
		if len(room.Streamers) > 0 {
			return domain.ErrStreamerPresent
		}
	}

	r.Leave(peer)
	room = r.room(roomID)
	room.Streamers[peer] = struct{}{}
	r.membership[peer] = roomID
	return nil
}

// JoinAsViewer adds the peer to the room's viewer set. Idempotent; a
// peer joined elsewhere is moved.
func (r *RoomRegistry) JoinAsViewer(roomID domain.RoomID, peer domain.PeerID) error {
	if room := r.rooms[roomID]; room != nil {
		if _, ok := room.Viewers[peer]; ok {
			return nil
		}
	}

	r.Leave(peer)
	room := r.room(roomID)
	room.Viewers[peer] = struct{}{}
	r.membership[peer] = roomID
	return nil
}

// Leave removes the peer from every room it appears in. Safe to call for
// unknown peers. A room left empty is removed immediately.
func (r *RoomRegistry) Leave(peer domain.PeerID) []ports.Departure {
	roomID, ok := r.membership[peer]
	if !ok {
		return nil
	}
	delete(r.membership, peer)

	room := r.rooms[roomID]
	if room == nil {
		return nil
	}

	var role domain.PeerRole
	if _, ok := room.Streamers[peer]; ok {
		delete(room.Streamers, peer)
		role = domain.RoleStreamer
	} else if _, ok := room.Viewers[peer]; ok {
		delete(room.Viewers, peer)
		role = domain.RoleViewer
	} else {
		return nil
	}

	dep := ports.Departure{
		Room:               roomID,
		Role:               role,
		StreamersRemaining: len(room.Streamers),
		ViewersRemaining:   len(room.Viewers),
	}
	if room.Empty() {
		delete(r.rooms, roomID)
		dep.RoomRemoved = true
	}
	return []ports.Departure{dep}
}

// Snapshot returns current occupancy of the room.
func (r *RoomRegistry) Snapshot(roomID domain.RoomID) (domain.RoomSnapshot, bool) {
	room, ok := r.rooms[roomID]
	if !ok {
		return domain.RoomSnapshot{}, false
	}
	return domain.RoomSnapshot{
		StreamerCount: len(room.Streamers),
		ViewerCount:   len(room.Viewers),
	}, true
}

func (r *RoomRegistry) Members(roomID domain.RoomID) []domain.PeerID {
	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return room.Members()
}

func (r *RoomRegistry) Streamers(roomID domain.RoomID) []domain.PeerID {
	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]domain.PeerID, 0, len(room.Streamers))
	for id := range room.Streamers {
		out = append(out, id)
	}
	return out
}

func (r *RoomRegistry) Viewers(roomID domain.RoomID) []domain.PeerID {
	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]domain.PeerID, 0, len(room.Viewers))
	for id := range room.Viewers {
		out = append(out, id)
	}
	return out
}

func (r *RoomRegistry) RoomOf(peer domain.PeerID) (domain.RoomID, bool) {
	roomID, ok := r.membership[peer]
	return roomID, ok
}

// RoomCount reports the number of live rooms (for metrics).
func (r *RoomRegistry) RoomCount() int {
	return len(r.rooms)
}
