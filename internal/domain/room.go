package domain

import (
	"errors"
	"time"
)

const MaxRoomIDLen = 64

var (
	ErrRoomIDEmpty   = errors.New("room id empty")
	ErrRoomIDTooLong = errors.New("room id too long")
)

// RoomID is agreed out-of-band; the hub never generates one.
type RoomID string

func ParseRoomID(raw string) (RoomID, error) {
	if raw == "" {
		return "", ErrRoomIDEmpty
	}
	if len(raw) > MaxRoomIDLen {
		return "", ErrRoomIDTooLong
	}
	return RoomID(raw), nil
}

// MemberRecord is a persisted, long-lived membership row.
type MemberRecord struct {
	UserID   UserID    `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

// RoomSnapshot is the state handed to a joiner for initial hydration.
type RoomSnapshot struct {
	Members  []MemberRecord `json:"users"`
	Pomodoro *Pomodoro      `json:"pomodoro"`
	Messages []ChatMessage  `json:"messages"`
}
