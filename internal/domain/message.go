package domain

import "time"

const MaxChatTextLen = 2000

type ChatMessage struct {
	ID         string    `json:"id"`
	RoomID     RoomID    `json:"roomId"`
	SenderID   UserID    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MaxPomodoroMinutes caps a single countdown at one day.
const MaxPomodoroMinutes = 24 * 60

const PomodoroModeFocus = "focus"

// Pomodoro is a room countdown. The live copy is in memory only;
// a persisted one is a best-effort snapshot.
type Pomodoro struct {
	Running   bool   `json:"running"`
	Mode      string `json:"mode"`
	Total     int    `json:"total"`
	Remaining int    `json:"remaining"`
}
