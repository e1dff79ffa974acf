//go:generate mockgen -source=store_iface.go -destination=mocks/store_mock.go -package=mocks

package core

import (
	"context"
	"errors"

	"github.com/dkeye/StudyRoom/internal/domain"
)

// Room store outcomes that reach the client unchanged.
var (
	ErrRoomNotFound = errors.New("room not found")
	ErrForbidden    = errors.New("forbidden")
)

// TokenVerifier is the identity service seen from the hub: it turns a bearer
// credential into an identity or rejects it.
type TokenVerifier interface {
	Verify(token string) (*domain.User, error)
}

// RoomStore persists long-lived room state. Live presence never depends on it.
type RoomStore interface {
	JoinMembership(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	RoomSnapshot(ctx context.Context, roomID domain.RoomID) (*domain.RoomSnapshot, error)
	SavePomodoro(ctx context.Context, roomID domain.RoomID, p domain.Pomodoro) error
}

// ChatStore records chat history. A message is broadcast only after it is stored.
type ChatStore interface {
	SaveMessage(ctx context.Context, roomID domain.RoomID, senderID domain.UserID, senderName, text string) (*domain.ChatMessage, error)
}
