package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/StudyRoom/internal/core"
	"github.com/dkeye/StudyRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrPersistence = errors.New("persistence failed")

const snapshotTimeout = 5 * time.Second

// Broadcaster fans room-scoped events out to the live members of a room:
// presence notices, chat and the shared countdown.
type Broadcaster struct {
	Registry   *Registry
	Out        *Fanout
	Chats      core.ChatStore
	Rooms      core.RoomStore
	Countdowns *Countdowns
}

func NewBroadcaster(ctx context.Context, reg *Registry, out *Fanout, chats core.ChatStore, rooms core.RoomStore, tick time.Duration) *Broadcaster {
	b := &Broadcaster{
		Registry: reg,
		Out:      out,
		Chats:    chats,
		Rooms:    rooms,
	}
	b.Countdowns = NewCountdowns(ctx, tick, CountdownHooks{
		Tick: b.onCountdownTick,
		Done: b.onCountdownDone,
	})
	return b
}

// ToRoom encodes v once and sends it to every member but except.
func (b *Broadcaster) ToRoom(room domain.RoomID, except core.SessionID, v any) (PublishResult, error) {
	frame, err := core.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcaster").Msg("encode")
		return PublishResult{}, err
	}
	return b.Out.Publish(room, b.Registry.MembersOfRoom(room), except, frame), nil
}

func (b *Broadcaster) UserJoined(room domain.RoomID, sid core.SessionID, user *domain.User) {
	_, _ = b.ToRoom(room, sid, core.PresenceEvent{
		Type:     core.EventUserJoined,
		RoomID:   room,
		SocketID: sid,
		UserID:   user.ID,
		Name:     user.Username,
	})
}

// UserLeft tells the remaining members about a departure. A departing
// screen sharer is announced as stopped first.
func (b *Broadcaster) UserLeft(dep *Departure) {
	if dep.Screen {
		b.ScreenChanged(dep.RoomID, dep.SID, dep.UserID, false)
	}
	_, _ = b.ToRoom(dep.RoomID, dep.SID, core.PresenceEvent{
		Type:     core.EventUserLeft,
		RoomID:   dep.RoomID,
		SocketID: dep.SID,
		UserID:   dep.UserID,
	})
}

func (b *Broadcaster) ScreenChanged(room domain.RoomID, sid core.SessionID, user domain.UserID, on bool) {
	ev := core.EventUserStoppedScreen
	if on {
		ev = core.EventUserStartedScreen
	}
	_, _ = b.ToRoom(room, sid, core.PresenceEvent{
		Type:     ev,
		RoomID:   room,
		SocketID: sid,
		UserID:   user,
	})
}

// BroadcastChat stores the message and only then echoes it to the whole
// room, sender included. A storage failure means nobody receives it.
func (b *Broadcaster) BroadcastChat(ctx context.Context, room domain.RoomID, sender *domain.User, text string) (*domain.ChatMessage, error) {
	msg, err := b.Chats.SaveMessage(ctx, room, sender.ID, sender.Username, text)
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcaster").Str("room", string(room)).Str("user", string(sender.ID)).Msg("save chat message")
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if _, err := b.ToRoom(room, "", core.ChatEvent{Type: core.EventChatMessage, Message: *msg}); err != nil {
		return nil, err
	}
	return msg, nil
}

// StartCountdown replaces the room's countdown; the first update goes out
// before this returns.
func (b *Broadcaster) StartCountdown(room domain.RoomID, totalSeconds int) domain.Pomodoro {
	if totalSeconds < 1 {
		totalSeconds = 1
	}
	snap := b.Countdowns.Start(room, totalSeconds)
	b.saveSnapshot(room, snap)
	return snap
}

func (b *Broadcaster) onCountdownTick(room domain.RoomID, p domain.Pomodoro) {
	if p.Running {
		_, _ = b.ToRoom(room, "", core.PomodoroUpdateEvent{Type: core.EventPomodoroUpdate, RoomID: room, Remaining: p.Remaining})
		return
	}
	_, _ = b.ToRoom(room, "", core.PomodoroEndEvent{Type: core.EventPomodoroEnd, RoomID: room})
}

func (b *Broadcaster) onCountdownDone(room domain.RoomID, p domain.Pomodoro) {
	b.saveSnapshot(room, p)
}

// saveSnapshot is best-effort; the in-memory countdown stays authoritative.
func (b *Broadcaster) saveSnapshot(room domain.RoomID, p domain.Pomodoro) {
	if b.Rooms == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	if err := b.Rooms.SavePomodoro(ctx, room, p); err != nil {
		log.Warn().Err(err).Str("module", "app.broadcaster").Str("room", string(room)).Msg("save pomodoro snapshot")
	}
}
