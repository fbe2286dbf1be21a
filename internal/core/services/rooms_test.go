package services

import (
	"testing"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinAsViewerCreatesRoom(t *testing.T) {
	reg := NewRoomRegistry()

	require.NoError(t, reg.JoinAsViewer("room-a", "p1"))

	snap, ok := reg.Snapshot("room-a")
	require.True(t, ok)
	assert.Equal(t, 0, snap.StreamerCount)
	assert.Equal(t, 1, snap.ViewerCount)
}

func TestJoinIsIdempotentPerRole(t *testing.T) {
	reg := NewRoomRegistry()

	require.NoError(t, reg.JoinAsViewer("room-a", "p1"))
	require.NoError(t, reg.JoinAsViewer("room-a", "p1"))

	snap, _ := reg.Snapshot("room-a")
	assert.Equal(t, 1, snap.ViewerCount)

	require.NoError(t, reg.JoinAsStreamer("room-b", "s1"))
	require.NoError(t, reg.JoinAsStreamer("room-b", "s1"))

	snap, _ = reg.Snapshot("room-b")
	assert.Equal(t, 1, snap.StreamerCount)
}

func TestSecondStreamerRejected(t *testing.T) {
	reg := NewRoomRegistry()

	require.NoError(t, reg.JoinAsStreamer("room-a", "s1"))
	err := reg.JoinAsStreamer("room-a", "s2")
	assert.ErrorIs(t, err, domain.ErrStreamerPresent)

	// The rejected peer is not a member anywhere.
	_, ok := reg.RoomOf("s2")
	assert.False(t, ok)

	snap, _ := reg.Snapshot("room-a")
	assert.Equal(t, 1, snap.StreamerCount)
}

func TestPeerInAtMostOneRoom(t *testing.T) {
	reg := NewRoomRegistry()

	require.NoError(t, reg.JoinAsViewer("room-a", "p1"))
	require.NoError(t, reg.JoinAsViewer("room-b", "p1"))

	_, ok := reg.Snapshot("room-a")
	assert.False(t, ok, "room-a should be removed once its only member moved")

	roomID, ok := reg.RoomOf("p1")
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("room-b"), roomID)
}

func TestRoleSwitchWithinRoom(t *testing.T) {
	reg := NewRoomRegistry()

	require.NoError(t, reg.JoinAsViewer("room-a", "p1"))
	require.NoError(t, reg.JoinAsStreamer("room-a", "p1"))

	snap, _ := reg.Snapshot("room-a")
	assert.Equal(t, 1, snap.StreamerCount)
	assert.Equal(t, 0, snap.ViewerCount)
}

func TestLeaveRemovesEmptyRoomImmediately(t *testing.T) {
	reg := NewRoomRegistry()

	require.NoError(t, reg.JoinAsStreamer("room-a", "s1"))
	deps := reg.Leave("s1")

	require.Len(t, deps, 1)
	assert.Equal(t, ports.Departure{
		Room:               "room-a",
		Role:               domain.RoleStreamer,
		StreamersRemaining: 0,
		ViewersRemaining:   0,
		RoomRemoved:        true,
	}, deps[0])

	_, ok := reg.Snapshot("room-a")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.RoomCount())
}

func TestLeaveReportsRemainingMembers(t *testing.T) {
	reg := NewRoomRegistry()

	require.NoError(t, reg.JoinAsStreamer("room-a", "s1"))
	require.NoError(t, reg.JoinAsViewer("room-a", "v1"))
	require.NoError(t, reg.JoinAsViewer("room-a", "v2"))

	deps := reg.Leave("s1")
	require.Len(t, deps, 1)
	assert.Equal(t, domain.RoleStreamer, deps[0].Role)
	assert.Equal(t, 0, deps[0].StreamersRemaining)
	assert.Equal(t, 2, deps[0].ViewersRemaining)
	assert.False(t, deps[0].RoomRemoved)
}

func TestLeaveUnknownPeerIsNoop(t *testing.T) {
	reg := NewRoomRegistry()
	assert.Nil(t, reg.Leave("ghost"))
	assert.Nil(t, reg.Leave("ghost"))
}

func TestMembersAndRoleSets(t *testing.T) {
	reg := NewRoomRegistry()

	require.NoError(t, reg.JoinAsStreamer("room-a", "s1"))
	require.NoError(t, reg.JoinAsViewer("room-a", "v1"))

	assert.ElementsMatch(t, []domain.PeerID{"s1", "v1"}, reg.Members("room-a"))
	assert.ElementsMatch(t, []domain.PeerID{"s1"}, reg.Streamers("room-a"))
	assert.ElementsMatch(t, []domain.PeerID{"v1"}, reg.Viewers("room-a"))

	assert.Nil(t, reg.Members("absent"))
}

func TestInvariantUnderJoinLeaveSequences(t *testing.T) {
	reg := NewRoomRegistry()

	// Arbitrary interleaving of joins and leaves; afterwards every room
	// that still exists must be non-empty and each peer in one room only.
	require.NoError(t, reg.JoinAsStreamer("a", "s1"))
	require.NoError(t, reg.JoinAsViewer("a", "v1"))
	require.NoError(t, reg.JoinAsViewer("b", "v2"))
	require.NoError(t, reg.JoinAsViewer("b", "v1")) // v1 moves a -> b
	reg.Leave("s1")
	require.NoError(t, reg.JoinAsStreamer("b", "s1"))
	reg.Leave("v2")

	_, ok := reg.Snapshot("a")
	assert.False(t, ok)

	snap, ok := reg.Snapshot("b")
	require.True(t, ok)
	assert.Equal(t, 1, snap.StreamerCount)
	assert.Equal(t, 1, snap.ViewerCount)
	assert.Equal(t, 1, reg.RoomCount())
}
