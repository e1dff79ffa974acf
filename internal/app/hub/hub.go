// Package hub is the single entry point for inbound room events. It owns the
// presence registry, the negotiation tracker, the signaling relay and the
// room broadcaster, and decides which of them an event reaches.
package hub

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/StudyRoom/internal/app"
	"github.com/dkeye/StudyRoom/internal/core"
	"github.com/dkeye/StudyRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotInRoom       = errors.New("not in room")
	ErrBadPayload      = errors.New("bad payload")
	// ErrPersistence wraps a failed chat or room store call.
	ErrPersistence = app.ErrPersistence
)

type Options struct {
	Policy        app.Policy
	CountdownTick time.Duration
}

type Hub struct {
	Registry    *app.Registry
	Pending     *app.NegotiationTracker
	Relay       *app.SignalRelay
	Broadcaster *app.Broadcaster
	Rooms       core.RoomStore
}

func New(ctx context.Context, rooms core.RoomStore, chats core.ChatStore, opts Options) *Hub {
	if opts.Policy == nil {
		opts.Policy = app.SimplePolicy{}
	}
	reg := app.NewRegistry()
	pending := app.NewNegotiationTracker()
	out := &app.Fanout{Policy: opts.Policy}
	return &Hub{
		Registry: reg,
		Pending:  pending,
		Relay: &app.SignalRelay{
			Registry: reg,
			Pending:  pending,
			Out:      out,
		},
		Broadcaster: app.NewBroadcaster(ctx, reg, out, chats, rooms, opts.CountdownTick),
		Rooms:       rooms,
	}
}

// Connect registers an authenticated connection. Connections without an
// identity are never registered.
func (h *Hub) Connect(sid core.SessionID, user *domain.User, conn core.SignalConnection, cancel context.CancelFunc) (core.MemberSession, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}
	sess := core.NewMemberSession(sid, domain.NewMember(user), conn)
	h.Registry.BindSignal(sid, sess, cancel)
	log.Info().Str("module", "hub").Str("sid", string(sid)).Str("user", string(user.ID)).Msg("connected")
	return sess, nil
}

// Disconnect cleans up after a transport close. It may run while other
// events of the same connection are still in flight; those become no-ops.
func (h *Hub) Disconnect(sid core.SessionID) {
	dep, left := h.Registry.Unbind(sid)
	forgotten := h.Pending.Forget(sid)
	if left {
		h.Broadcaster.UserLeft(dep)
	}
	log.Info().Str("module", "hub").Str("sid", string(sid)).Bool("left_room", left).Int("pending_dropped", forgotten).Msg("disconnected")
}

// session resolves an authenticated connection.
func (h *Hub) session(sid core.SessionID) (core.MemberSession, error) {
	sess, ok := h.Registry.GetSession(sid)
	if !ok || sess.Meta() == nil || sess.Meta().User == nil {
		return nil, ErrUnauthenticated
	}
	return sess, nil
}

// inRoom resolves a connection that must currently be a member of room.
func (h *Hub) inRoom(sid core.SessionID, room domain.RoomID) (core.MemberSession, error) {
	sess, err := h.session(sid)
	if err != nil {
		return nil, err
	}
	current, _, ok := h.Registry.RoomOf(sid)
	if !ok || current != room {
		return nil, ErrNotInRoom
	}
	return sess, nil
}

func (h *Hub) send(room domain.RoomID, sess core.MemberSession, v any) {
	frame, err := core.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Msg("encode")
		return
	}
	_ = h.Relay.Out.SendTo(room, sess, frame)
}

// WhoAmI returns the identity of a connection and the room it is in.
func (h *Hub) WhoAmI(sid core.SessionID) (*domain.User, domain.RoomID, error) {
	sess, err := h.session(sid)
	if err != nil {
		return nil, "", err
	}
	room, _, _ := h.Registry.RoomOf(sid)
	return sess.Meta().User, room, nil
}

// Presence lists the live members of a room.
func (h *Hub) Presence(room domain.RoomID) []core.PeerDTO {
	return peers(h.Registry.MembersOfRoom(room))
}

func (h *Hub) Stats() (rooms, sessions, countdowns int) {
	rooms, sessions = h.Registry.Stats()
	return rooms, sessions, h.Broadcaster.Countdowns.Active()
}

// Shutdown stops every countdown and closes every connection.
func (h *Hub) Shutdown() {
	h.Broadcaster.Countdowns.StopAll()
	for _, snap := range h.Registry.Sessions() {
		snap.Session.Signal().Close()
		h.Registry.Cancel(snap.SID)
	}
	log.Info().Str("module", "hub").Msg("hub shut down")
}

func peers(members []app.MemberSnap) []core.PeerDTO {
	out := make([]core.PeerDTO, 0, len(members))
	for _, m := range members {
		dto := core.PeerDTO{SocketID: m.SID}
		if u := m.Session.Meta().User; u != nil {
			dto.UserID = u.ID
			dto.Name = u.Username
		}
		out = append(out, dto)
	}
	return out
}
