package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/StudyRoom/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Hub.Disconnect(sid)
		cancel()
		c.Close()
		ctl.chat.Prune()
	}()

	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			ctl.handleSignal(ctx, sid, c, data)
		}
	}
}

// inbound is the union of every client event payload.
type inbound struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	RoomID    string          `json:"roomId,omitempty"`
	To        string          `json:"toConnectionId,omitempty"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Minutes   float64         `json:"minutes,omitempty"`
	Text      string          `json:"text,omitempty"`
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, sid core.SessionID, c *WsSignalConn, data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		ctl.sendError(c, "", "", codeBadPayload)
		return
	}

	switch msg.Type {
	case core.EventJoinRoom:
		ctl.handleJoin(ctx, sid, c, &msg)
	case core.EventLeaveRoom:
		ctl.handleLeave(sid, c, &msg)
	case core.EventOffer, core.EventAnswer, core.EventScreenOffer, core.EventScreenAnswer:
		ctl.handleDescription(sid, c, &msg)
	case core.EventICECandidate, core.EventScreenICE:
		ctl.handleCandidate(sid, c, &msg)
	case core.EventJoinScreen, core.EventLeaveScreen:
		ctl.handleScreen(sid, c, &msg)
	case core.EventStartPomodoro:
		ctl.handlePomodoro(sid, c, &msg)
	case core.EventChatMessage:
		ctl.handleChat(ctx, sid, c, &msg)
	case core.EventPing:
		ctl.sendJSON(c, core.ControlEvent{Type: core.EventPong, RequestID: msg.RequestID})
	case core.EventWhoAmI:
		ctl.handleWhoAmI(sid, c, &msg)
	default:
		log.Warn().Str("module", "signal").Str("type", msg.Type).Msg("unknown signal")
		ctl.sendError(c, msg.Type, msg.RequestID, codeUnknownEvent)
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	frame, err := core.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(frame)
}
