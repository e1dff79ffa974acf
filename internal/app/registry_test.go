package app

import (
	"fmt"
	"sync"
	"testing"

	"github.com/dkeye/StudyRoom/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sids(snaps []MemberSnap) []core.SessionID {
	out := make([]core.SessionID, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, s.SID)
	}
	return out
}

func TestRegistryJoinIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	bindFake(t, reg, "a", "alice")

	res, err := reg.Join("a", "study-1")
	require.NoError(t, err)
	assert.Empty(t, res.Existing)
	assert.False(t, res.Rejoined)

	res, err = reg.Join("a", "study-1")
	require.NoError(t, err)
	assert.True(t, res.Rejoined)
	assert.Empty(t, res.Existing)

	assert.Equal(t, []core.SessionID{"a"}, sids(reg.MembersOfRoom("study-1")))
}

func TestRegistryJoinReturnsOthers(t *testing.T) {
	reg := NewRegistry()
	bindFake(t, reg, "a", "alice")
	bindFake(t, reg, "b", "bob")

	_, err := reg.Join("a", "study-1")
	require.NoError(t, err)
	res, err := reg.Join("b", "study-1")
	require.NoError(t, err)

	assert.Equal(t, []core.SessionID{"a"}, sids(res.Existing))
	assert.ElementsMatch(t, []core.SessionID{"a", "b"}, sids(reg.MembersOfRoom("study-1")))
}

func TestRegistryJoinOtherRoomLeavesPrevious(t *testing.T) {
	reg := NewRegistry()
	bindFake(t, reg, "a", "alice")

	_, err := reg.Join("a", "r1")
	require.NoError(t, err)
	res, err := reg.Join("a", "r2")
	require.NoError(t, err)

	require.NotNil(t, res.Previous)
	assert.Equal(t, "r1", string(res.Previous.RoomID))
	assert.Empty(t, reg.MembersOfRoom("r1"))
	room, _, ok := reg.RoomOf("a")
	assert.True(t, ok)
	assert.Equal(t, "r2", string(room))
}

func TestRegistryJoinUnknownSession(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Join("ghost", "r1")
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestRegistryLeave(t *testing.T) {
	reg := NewRegistry()
	bindFake(t, reg, "a", "alice")

	_, ok := reg.Leave("a")
	assert.False(t, ok, "leave without a room is a no-op")

	_, err := reg.Join("a", "r1")
	require.NoError(t, err)
	_, ok = reg.SetScreen("a", "r1", true)
	require.True(t, ok)

	dep, ok := reg.Leave("a")
	require.True(t, ok)
	assert.Equal(t, "r1", string(dep.RoomID))
	assert.Equal(t, "alice", string(dep.UserID))
	assert.True(t, dep.Screen)

	rooms, sessions := reg.Stats()
	assert.Equal(t, 0, rooms)
	assert.Equal(t, 1, sessions)
}

func TestRegistryUnbind(t *testing.T) {
	reg := NewRegistry()
	bindFake(t, reg, "a", "alice")
	bindFake(t, reg, "b", "bob")
	_, _ = reg.Join("a", "r1")
	_, _ = reg.Join("b", "r1")

	dep, left := reg.Unbind("a")
	require.True(t, left)
	assert.Equal(t, "r1", string(dep.RoomID))
	assert.Equal(t, []core.SessionID{"b"}, sids(reg.MembersOfRoom("r1")))

	_, ok := reg.GetSession("a")
	assert.False(t, ok)
	_, left = reg.Unbind("a")
	assert.False(t, left, "second unbind is a no-op")
}

func TestRegistryUnknownRoomHasNoMembers(t *testing.T) {
	reg := NewRegistry()
	assert.Empty(t, reg.MembersOfRoom("nowhere"))
}

func TestRegistrySetScreenRequiresRoom(t *testing.T) {
	reg := NewRegistry()
	bindFake(t, reg, "a", "alice")
	_, _ = reg.Join("a", "r1")

	_, ok := reg.SetScreen("a", "r2", true)
	assert.False(t, ok)

	changed, ok := reg.SetScreen("a", "r1", true)
	assert.True(t, ok)
	assert.True(t, changed)
	changed, _ = reg.SetScreen("a", "r1", true)
	assert.False(t, changed)
}

func TestRegistryConcurrentJoinLeave(t *testing.T) {
	reg := NewRegistry()
	const n = 50
	for i := 0; i < n; i++ {
		bindFake(t, reg, fmt.Sprintf("s%d", i), fmt.Sprintf("u%d", i))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sid := core.SessionID(fmt.Sprintf("s%d", i))
			for j := 0; j < 20; j++ {
				_, _ = reg.Join(sid, "shared")
				if j%3 == 0 {
					reg.Leave(sid)
				}
			}
			_, _ = reg.Join(sid, "shared")
		}(i)
	}
	wg.Wait()

	assert.Len(t, reg.MembersOfRoom("shared"), n)
	for i := 0; i < n; i++ {
		room, _, ok := reg.RoomOf(core.SessionID(fmt.Sprintf("s%d", i)))
		require.True(t, ok)
		assert.Equal(t, "shared", string(room))
	}
}
