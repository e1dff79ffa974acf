package app

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/StudyRoom/internal/core"
	"github.com/dkeye/StudyRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrUnknownSession = errors.New("unknown session")

// sessionEntry is the connection -> room direction of membership.
// Lock order is always sessionEntry.mu before roomEntry.mu.
type sessionEntry struct {
	mu      sync.Mutex
	RoomID  domain.RoomID
	Screen  bool
	Session core.MemberSession
	Cancel  context.CancelFunc
	unbound bool
}

// roomEntry is the room -> connections direction of membership.
type roomEntry struct {
	mu      sync.RWMutex
	members map[core.SessionID]core.MemberSession
	removed bool
}

// Registry owns live presence: which connections exist and which room each is in.
// The top-level maps are only held long enough to find or create an entry,
// so work on different rooms or connections does not serialise.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	rooms    map[domain.RoomID]*roomEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		rooms:    make(map[domain.RoomID]*roomEntry),
	}
}

// Departure describes a connection that left a room.
type Departure struct {
	RoomID   domain.RoomID
	SID      core.SessionID
	UserID   domain.UserID
	Username string
	Screen   bool
}

// JoinResult is what a joiner needs to know.
type JoinResult struct {
	// Existing is every member of the room except the joiner.
	Existing []MemberSnap
	// Previous is set when the connection was moved out of another room.
	Previous *Departure
	// Rejoined reports that the connection was already a member.
	Rejoined bool
}

type MemberSnap struct {
	SID     core.SessionID
	Session core.MemberSession
}

func (r *Registry) BindSignal(sid core.SessionID, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{Session: sess, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound signal")
}

func (r *Registry) GetSession(sid core.SessionID) (core.MemberSession, bool) {
	e, ok := r.entry(sid)
	if !ok {
		return nil, false
	}
	return e.Session, true
}

func (r *Registry) entry(sid core.SessionID) (*sessionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	return e, ok
}

// lockedEntry returns the entry locked, or false if it is gone.
func (r *Registry) lockedEntry(sid core.SessionID) (*sessionEntry, bool) {
	e, ok := r.entry(sid)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	if e.unbound {
		e.mu.Unlock()
		return nil, false
	}
	return e, true
}

// acquireRoom returns the live entry for id locked for writing, creating it when absent.
func (r *Registry) acquireRoom(id domain.RoomID) *roomEntry {
	for {
		r.mu.Lock()
		re, ok := r.rooms[id]
		if !ok {
			re = &roomEntry{members: make(map[core.SessionID]core.MemberSession)}
			r.rooms[id] = re
		}
		r.mu.Unlock()

		re.mu.Lock()
		if !re.removed {
			return re
		}
		// Lost a race with the last member leaving; retry on a fresh entry.
		re.mu.Unlock()
	}
}

// dropMemberLocked removes sid from re, which the caller holds.
// An emptied room is unlinked from the registry.
func (r *Registry) dropMemberLocked(id domain.RoomID, re *roomEntry, sid core.SessionID) {
	delete(re.members, sid)
	if len(re.members) > 0 {
		return
	}
	re.removed = true
	r.mu.Lock()
	if r.rooms[id] == re {
		delete(r.rooms, id)
	}
	r.mu.Unlock()
}

// leaveLocked detaches e from its room. The caller holds e.mu.
func (r *Registry) leaveLocked(sid core.SessionID, e *sessionEntry) (*Departure, bool) {
	if e.RoomID == "" {
		return nil, false
	}
	dep := &Departure{
		RoomID: e.RoomID,
		SID:    sid,
		Screen: e.Screen,
	}
	if u := e.Session.Meta().User; u != nil {
		dep.UserID = u.ID
		dep.Username = u.Username
	}

	r.mu.RLock()
	re, ok := r.rooms[e.RoomID]
	r.mu.RUnlock()
	if ok {
		re.mu.Lock()
		if !re.removed {
			r.dropMemberLocked(e.RoomID, re, sid)
		}
		re.mu.Unlock()
	}
	e.RoomID = ""
	e.Screen = false
	return dep, true
}

// Join puts sid into room id. Joining the room it is already in adds no
// duplicate; joining another room leaves the previous one first.
func (r *Registry) Join(sid core.SessionID, id domain.RoomID) (*JoinResult, error) {
	e, ok := r.lockedEntry(sid)
	if !ok {
		return nil, ErrUnknownSession
	}
	defer e.mu.Unlock()

	res := &JoinResult{}
	if e.RoomID != "" && e.RoomID != id {
		res.Previous, _ = r.leaveLocked(sid, e)
	}

	re := r.acquireRoom(id)
	if _, ok := re.members[sid]; ok {
		res.Rejoined = true
	}
	re.members[sid] = e.Session
	res.Existing = make([]MemberSnap, 0, len(re.members))
	for other, ms := range re.members {
		if other == sid {
			continue
		}
		res.Existing = append(res.Existing, MemberSnap{SID: other, Session: ms})
	}
	count := len(re.members)
	re.mu.Unlock()

	e.RoomID = id
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(id)).Int("members", count).Msg("joined room")
	return res, nil
}

// Leave removes sid from whatever room it is in. It is a no-op for a
// connection that is in no room or no longer known.
func (r *Registry) Leave(sid core.SessionID) (*Departure, bool) {
	e, ok := r.lockedEntry(sid)
	if !ok {
		return nil, false
	}
	defer e.mu.Unlock()
	dep, ok := r.leaveLocked(sid, e)
	if ok {
		log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(dep.RoomID)).Msg("left room")
	}
	return dep, ok
}

// Unbind forgets the connection entirely and reports the room it left, if any.
func (r *Registry) Unbind(sid core.SessionID) (*Departure, bool) {
	e, ok := r.lockedEntry(sid)
	if !ok {
		return nil, false
	}
	dep, left := r.leaveLocked(sid, e)
	e.unbound = true
	e.mu.Unlock()

	r.mu.Lock()
	if r.sessions[sid] == e {
		delete(r.sessions, sid)
	}
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	return dep, left
}

func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomID, core.MemberSession, bool) {
	e, ok := r.lockedEntry(sid)
	if !ok {
		return "", nil, false
	}
	defer e.mu.Unlock()
	if e.RoomID == "" {
		return "", nil, false
	}
	return e.RoomID, e.Session, true
}

// SetScreen records whether sid is sharing its screen in room id.
// It reports false when sid is not currently in that room.
func (r *Registry) SetScreen(sid core.SessionID, id domain.RoomID, on bool) (changed, ok bool) {
	e, found := r.lockedEntry(sid)
	if !found {
		return false, false
	}
	defer e.mu.Unlock()
	if e.RoomID != id {
		return false, false
	}
	changed = e.Screen != on
	e.Screen = on
	return changed, true
}

// MembersOfRoom is a snapshot; an unknown room simply has no members.
func (r *Registry) MembersOfRoom(id domain.RoomID) []MemberSnap {
	r.mu.RLock()
	re, ok := r.rooms[id]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	re.mu.RLock()
	defer re.mu.RUnlock()
	out := make([]MemberSnap, 0, len(re.members))
	for sid, ms := range re.members {
		out = append(out, MemberSnap{SID: sid, Session: ms})
	}
	return out
}

func (r *Registry) Stats() (rooms, sessions int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms), len(r.sessions)
}

// Sessions is a snapshot of every bound connection.
func (r *Registry) Sessions() []MemberSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberSnap, 0, len(r.sessions))
	for sid, e := range r.sessions {
		out = append(out, MemberSnap{SID: sid, Session: e.Session})
	}
	return out
}

func (r *Registry) Cancel(sid core.SessionID) bool {
	e, ok := r.entry(sid)
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
