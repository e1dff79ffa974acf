package core

import "github.com/dkeye/StudyRoom/internal/domain"

// SessionID identifies one live connection. A user may own several.
type SessionID string

// MemberSession binds domain.Member and its transport endpoint.
// This is what the registry stores and the hub fans out to.
type MemberSession interface {
	ID() SessionID
	Meta() *domain.Member
	Signal() SignalConnection
}
