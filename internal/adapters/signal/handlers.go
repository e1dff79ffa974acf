package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/StudyRoom/internal/app"
	"github.com/dkeye/StudyRoom/internal/app/hub"
	"github.com/dkeye/StudyRoom/internal/core"
	"github.com/dkeye/StudyRoom/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const (
	codeUnauthenticated = "unauthenticated"
	codeNotInRoom       = "not_in_room"
	codeBadPayload      = "bad_payload"
	codePersistence     = "persistence_failed"
	codeRoomNotFound    = "room_not_found"
	codeForbidden       = "forbidden"
	codeRateLimited     = "rate_limited"
	codeUnknownEvent    = "unknown_event"
	codeInternal        = "internal"
)

const chatTimeout = 5 * time.Second

func errorCode(err error) string {
	switch {
	case errors.Is(err, hub.ErrUnauthenticated):
		return codeUnauthenticated
	case errors.Is(err, hub.ErrNotInRoom):
		return codeNotInRoom
	case errors.Is(err, hub.ErrBadPayload),
		errors.Is(err, domain.ErrRoomIDEmpty),
		errors.Is(err, domain.ErrRoomIDTooLong):
		return codeBadPayload
	case errors.Is(err, core.ErrRoomNotFound):
		return codeRoomNotFound
	case errors.Is(err, core.ErrForbidden):
		return codeForbidden
	case errors.Is(err, hub.ErrPersistence):
		return codePersistence
	default:
		return codeInternal
	}
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, event, requestID, code string) {
	ctl.sendJSON(c, core.ErrorEvent{Type: core.EventError, Event: event, RequestID: requestID, Code: code})
}

func (ctl *SignalWSController) fail(c *WsSignalConn, msg *inbound, err error) {
	ctl.sendError(c, msg.Type, msg.RequestID, errorCode(err))
}

// ack is only sent when the client asked for one.
func (ctl *SignalWSController) ack(c *WsSignalConn, msg *inbound, ev core.AckEvent) {
	if msg.RequestID == "" {
		return
	}
	ev.Type = core.EventAck
	ev.Event = msg.Type
	ev.RequestID = msg.RequestID
	ctl.sendJSON(c, ev)
}

func (ctl *SignalWSController) handleJoin(ctx context.Context, sid core.SessionID, c *WsSignalConn, msg *inbound) {
	room, err := domain.ParseRoomID(msg.RoomID)
	if err != nil {
		ctl.fail(c, msg, err)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(room)).Msg("join")
	if _, err := ctl.Hub.JoinRoom(ctx, sid, room); err != nil {
		ctl.fail(c, msg, err)
		return
	}
	ctl.ack(c, msg, core.AckEvent{RoomID: room})
}

// handleLeave leaves the current room; the connection stays open.
func (ctl *SignalWSController) handleLeave(sid core.SessionID, c *WsSignalConn, msg *inbound) {
	room, err := ctl.Hub.LeaveRoom(sid)
	if err != nil {
		ctl.fail(c, msg, err)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(room)).Msg("leave")
	ctl.sendJSON(c, core.ControlEvent{Type: core.EventLeft, RequestID: msg.RequestID, RoomID: room})
}

func channelOf(event string) domain.Channel {
	switch event {
	case core.EventScreenOffer, core.EventScreenAnswer, core.EventScreenICE:
		return domain.ChannelScreen
	default:
		return domain.ChannelMedia
	}
}

// relayOutcome keeps stale answers and vanished targets silent towards
// both peers.
func (ctl *SignalWSController) relayOutcome(c *WsSignalConn, msg *inbound, err error) {
	switch {
	case err == nil:
		ctl.ack(c, msg, core.AckEvent{RoomID: domain.RoomID(msg.RoomID)})
	case errors.Is(err, app.ErrStaleNegotiation), errors.Is(err, app.ErrUnknownTarget):
	default:
		ctl.fail(c, msg, err)
	}
}

func (ctl *SignalWSController) handleDescription(sid core.SessionID, c *WsSignalConn, msg *inbound) {
	kind := core.SignalOffer
	if msg.Type == core.EventAnswer || msg.Type == core.EventScreenAnswer {
		kind = core.SignalAnswer
	}
	err := ctl.Hub.Signal(sid, kind, channelOf(msg.Type), domain.RoomID(msg.RoomID), core.SessionID(msg.To), msg.SDP)
	ctl.relayOutcome(c, msg, err)
}

func (ctl *SignalWSController) handleCandidate(sid core.SessionID, c *WsSignalConn, msg *inbound) {
	var cand webrtc.ICECandidateInit
	if len(msg.Candidate) == 0 || json.Unmarshal(msg.Candidate, &cand) != nil {
		ctl.fail(c, msg, hub.ErrBadPayload)
		return
	}
	err := ctl.Hub.Candidate(sid, channelOf(msg.Type), domain.RoomID(msg.RoomID), core.SessionID(msg.To), cand)
	ctl.relayOutcome(c, msg, err)
}

func (ctl *SignalWSController) handleScreen(sid core.SessionID, c *WsSignalConn, msg *inbound) {
	room := domain.RoomID(msg.RoomID)
	var err error
	if msg.Type == core.EventJoinScreen {
		err = ctl.Hub.StartScreen(sid, room)
	} else {
		err = ctl.Hub.StopScreen(sid, room)
	}
	if err != nil {
		ctl.fail(c, msg, err)
		return
	}
	ctl.ack(c, msg, core.AckEvent{RoomID: room})
}

func (ctl *SignalWSController) handlePomodoro(sid core.SessionID, c *WsSignalConn, msg *inbound) {
	room := domain.RoomID(msg.RoomID)
	p, err := ctl.Hub.StartPomodoro(sid, room, msg.Minutes)
	if err != nil {
		ctl.fail(c, msg, err)
		return
	}
	ctl.ack(c, msg, core.AckEvent{RoomID: room, Pomodoro: &p})
}

func (ctl *SignalWSController) handleChat(ctx context.Context, sid core.SessionID, c *WsSignalConn, msg *inbound) {
	user, current, err := ctl.Hub.WhoAmI(sid)
	if err != nil {
		ctl.fail(c, msg, err)
		return
	}
	room := domain.RoomID(msg.RoomID)
	if current == "" || current != room {
		ctl.fail(c, msg, hub.ErrNotInRoom)
		return
	}
	if !ctl.chat.Allow(user.ID) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("user", string(user.ID)).Msg("chat rate limited")
		ctl.sendError(c, msg.Type, msg.RequestID, codeRateLimited)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()
	stored, err := ctl.Hub.Chat(ctx, sid, room, msg.Text)
	if err != nil {
		ctl.fail(c, msg, err)
		return
	}
	ctl.ack(c, msg, core.AckEvent{RoomID: room, Message: stored})
}

func (ctl *SignalWSController) handleWhoAmI(sid core.SessionID, c *WsSignalConn, msg *inbound) {
	user, room, err := ctl.Hub.WhoAmI(sid)
	if err != nil {
		ctl.fail(c, msg, err)
		return
	}
	ctl.sendJSON(c, core.WhoAmIEvent{
		Type:      core.EventWhoAmI,
		RequestID: msg.RequestID,
		SocketID:  sid,
		User:      *user,
		RoomID:    room,
	})
}
