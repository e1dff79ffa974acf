package hub

import (
	"context"
	"math"
	"strings"

	"github.com/dkeye/StudyRoom/internal/core"
	"github.com/dkeye/StudyRoom/internal/domain"
)

// StartPomodoro starts (or restarts) the room countdown. Fractional minutes
// are allowed; the duration is clamped to [1, MaxPomodoroMinutes] minutes.
func (h *Hub) StartPomodoro(sid core.SessionID, room domain.RoomID, minutes float64) (domain.Pomodoro, error) {
	if _, err := h.inRoom(sid, room); err != nil {
		return domain.Pomodoro{}, err
	}
	return h.Broadcaster.StartCountdown(room, pomodoroSeconds(minutes)), nil
}

func pomodoroSeconds(minutes float64) int {
	if math.IsNaN(minutes) || minutes < 1 {
		minutes = 1
	}
	if minutes > domain.MaxPomodoroMinutes {
		minutes = domain.MaxPomodoroMinutes
	}
	return int(math.Round(minutes * 60))
}

// Chat stores and broadcasts a chat message from sid to its room.
func (h *Hub) Chat(ctx context.Context, sid core.SessionID, room domain.RoomID, text string) (*domain.ChatMessage, error) {
	sess, err := h.inRoom(sid, room)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" || len(text) > domain.MaxChatTextLen {
		return nil, ErrBadPayload
	}
	return h.Broadcaster.BroadcastChat(ctx, room, sess.Meta().User, text)
}
