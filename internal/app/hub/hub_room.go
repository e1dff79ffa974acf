package hub

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/StudyRoom/internal/core"
	"github.com/dkeye/StudyRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

type JoinReply struct {
	RoomID   domain.RoomID
	Existing []core.PeerDTO
	Snapshot *domain.RoomSnapshot
}

// JoinRoom adds sid to room, tells the joiner who is already there, tells
// the others about the joiner and hydrates the joiner with the room snapshot.
// If the snapshot cannot be loaded the live join stands: the reply is still
// returned, no roomUsers is sent and the error says why.
func (h *Hub) JoinRoom(ctx context.Context, sid core.SessionID, room domain.RoomID) (*JoinReply, error) {
	sess, err := h.session(sid)
	if err != nil {
		return nil, err
	}
	user := sess.Meta().User

	res, err := h.Registry.Join(sid, room)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	if res.Previous != nil {
		h.Broadcaster.UserLeft(res.Previous)
		log.Info().Str("module", "hub").Str("sid", string(sid)).Str("from_room", string(res.Previous.RoomID)).Msg("moved out of previous room")
	}

	reply := &JoinReply{RoomID: room, Existing: peers(res.Existing)}
	h.send(room, sess, core.ExistingUsersEvent{Type: core.EventExistingUsers, RoomID: room, Existing: reply.Existing})
	if !res.Rejoined {
		h.Broadcaster.UserJoined(room, sid, user)
	}

	h.persistMembership(ctx, room, user.ID)

	reply.Snapshot, err = h.snapshot(ctx, room)
	if err != nil {
		return reply, err
	}
	h.send(room, sess, core.RoomUsersEvent{
		Type:     core.EventRoomUsers,
		RoomID:   room,
		Users:    reply.Snapshot.Members,
		Pomodoro: reply.Snapshot.Pomodoro,
		Messages: reply.Snapshot.Messages,
	})
	return reply, nil
}

// persistMembership is best-effort: live presence does not wait for or
// depend on the long-lived membership row.
func (h *Hub) persistMembership(ctx context.Context, room domain.RoomID, user domain.UserID) {
	if h.Rooms == nil {
		return
	}
	if err := h.Rooms.JoinMembership(ctx, room, user); err != nil {
		log.Warn().Err(err).Str("module", "hub").Str("room", string(room)).Str("user", string(user)).Msg("persist membership")
	}
}

// snapshot merges the stored room state with the live countdown.
// Not found and forbidden pass through unchanged; anything else is a
// persistence failure.
func (h *Hub) snapshot(ctx context.Context, room domain.RoomID) (*domain.RoomSnapshot, error) {
	snap := &domain.RoomSnapshot{}
	if h.Rooms != nil {
		stored, err := h.Rooms.RoomSnapshot(ctx, room)
		switch {
		case errors.Is(err, core.ErrRoomNotFound), errors.Is(err, core.ErrForbidden):
			log.Warn().Err(err).Str("module", "hub").Str("room", string(room)).Msg("load room snapshot")
			return nil, err
		case err != nil:
			log.Error().Err(err).Str("module", "hub").Str("room", string(room)).Msg("load room snapshot")
			return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
		case stored != nil:
			snap = stored
		}
	}
	if live, ok := h.Broadcaster.Countdowns.Snapshot(room); ok {
		snap.Pomodoro = &live
	}
	if snap.Members == nil {
		snap.Members = []domain.MemberRecord{}
	}
	if snap.Messages == nil {
		snap.Messages = []domain.ChatMessage{}
	}
	return snap, nil
}

// LeaveRoom takes sid out of its room without closing the connection.
func (h *Hub) LeaveRoom(sid core.SessionID) (domain.RoomID, error) {
	if _, err := h.session(sid); err != nil {
		return "", err
	}
	dep, ok := h.Registry.Leave(sid)
	if !ok {
		return "", nil
	}
	h.Broadcaster.UserLeft(dep)
	return dep.RoomID, nil
}
