package core

import (
	"encoding/json"

	"github.com/dkeye/StudyRoom/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Inbound event names.
const (
	EventJoinRoom      = "joinRoom"
	EventLeaveRoom     = "leaveRoom"
	EventOffer         = "offer"
	EventAnswer        = "answer"
	EventICECandidate  = "ice-candidate"
	EventJoinScreen    = "join-screen"
	EventScreenOffer   = "screen-offer"
	EventScreenAnswer  = "screen-answer"
	EventScreenICE     = "screen-ice"
	EventLeaveScreen   = "leave-screen"
	EventStartPomodoro = "startPomodoro"
	EventChatMessage   = "chat:message"
	EventPing          = "ping"
	EventWhoAmI        = "whoami"
)

// Outbound event names.
const (
	EventExistingUsers     = "existing-users"
	EventUserJoined        = "user-joined"
	EventUserLeft          = "user-left"
	EventRoomUsers         = "roomUsers"
	EventUserStartedScreen = "user-started-screen"
	EventUserStoppedScreen = "user-stopped-screen"
	EventPomodoroUpdate    = "pomodoroUpdate"
	EventPomodoroEnd       = "pomodoroEnd"
	EventAck               = "ack"
	EventError             = "error"
	EventLeft              = "left"
	EventPong              = "pong"
)

// SignalKind is one step of an offer/answer exchange.
type SignalKind int

const (
	SignalOffer SignalKind = iota
	SignalAnswer
	SignalCandidate
)

var channelEvents = map[domain.Channel][3]string{
	domain.ChannelMedia:  {EventOffer, EventAnswer, EventICECandidate},
	domain.ChannelScreen: {EventScreenOffer, EventScreenAnswer, EventScreenICE},
}

// SignalEvent maps a (channel, kind) pair to its wire name.
func SignalEvent(ch domain.Channel, kind SignalKind) string {
	return channelEvents[ch][kind]
}

// PeerDTO is a read-only view of a live member (no transport fields).
type PeerDTO struct {
	SocketID SessionID     `json:"socketId"`
	UserID   domain.UserID `json:"userId"`
	Name     string        `json:"name,omitempty"`
}

type ExistingUsersEvent struct {
	Type     string        `json:"type"`
	RoomID   domain.RoomID `json:"roomId"`
	Existing []PeerDTO     `json:"existing"`
}

// PresenceEvent covers user-joined, user-left and the screen start/stop notices.
type PresenceEvent struct {
	Type     string        `json:"type"`
	RoomID   domain.RoomID `json:"roomId"`
	SocketID SessionID     `json:"socketId"`
	UserID   domain.UserID `json:"userId"`
	Name     string        `json:"name,omitempty"`
}

type RoomUsersEvent struct {
	Type     string                `json:"type"`
	RoomID   domain.RoomID         `json:"roomId"`
	Users    []domain.MemberRecord `json:"users"`
	Pomodoro *domain.Pomodoro      `json:"pomodoro"`
	Messages []domain.ChatMessage  `json:"messages"`
}

type DescriptionEvent struct {
	Type             string          `json:"type"`
	RoomID           domain.RoomID   `json:"roomId"`
	FromConnectionID SessionID       `json:"fromConnectionId"`
	SDP              json.RawMessage `json:"sdp"`
}

type CandidateEvent struct {
	Type             string                  `json:"type"`
	RoomID           domain.RoomID           `json:"roomId"`
	FromConnectionID SessionID               `json:"fromConnectionId"`
	Candidate        webrtc.ICECandidateInit `json:"candidate"`
}

type PomodoroUpdateEvent struct {
	Type      string        `json:"type"`
	RoomID    domain.RoomID `json:"roomId"`
	Remaining int           `json:"remaining"`
}

type PomodoroEndEvent struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
}

type ChatEvent struct {
	Type    string             `json:"type"`
	Message domain.ChatMessage `json:"message"`
}

// AckEvent confirms an inbound event that carried a requestId.
type AckEvent struct {
	Type      string              `json:"type"`
	Event     string              `json:"event"`
	RequestID string              `json:"requestId,omitempty"`
	RoomID    domain.RoomID       `json:"roomId,omitempty"`
	Message   *domain.ChatMessage `json:"message,omitempty"`
	Pomodoro  *domain.Pomodoro    `json:"pomodoro,omitempty"`
}

// ErrorEvent rejects an inbound event. Code is a stable machine-readable string.
type ErrorEvent struct {
	Type      string `json:"type"`
	Event     string `json:"event"`
	RequestID string `json:"requestId,omitempty"`
	Code      string `json:"error"`
}

type WhoAmIEvent struct {
	Type      string        `json:"type"`
	RequestID string        `json:"requestId,omitempty"`
	SocketID  SessionID     `json:"socketId"`
	User      domain.User   `json:"user"`
	RoomID    domain.RoomID `json:"roomId,omitempty"`
}

// ControlEvent is a bare reply such as pong or left.
type ControlEvent struct {
	Type      string        `json:"type"`
	RequestID string        `json:"requestId,omitempty"`
	RoomID    domain.RoomID `json:"roomId,omitempty"`
}

// Encode serialises an outbound event.
func Encode(v any) (Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}
