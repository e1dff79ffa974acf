package hub

import (
	"encoding/json"

	"github.com/dkeye/StudyRoom/internal/core"
	"github.com/dkeye/StudyRoom/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Signal relays an offer or answer on either channel. It is addressed by
// connection id, so room membership is not consulted.
func (h *Hub) Signal(sid core.SessionID, kind core.SignalKind, ch domain.Channel, room domain.RoomID, to core.SessionID, sdp json.RawMessage) error {
	if _, err := h.session(sid); err != nil {
		return err
	}
	if !ch.Valid() || to == "" || len(sdp) == 0 {
		return ErrBadPayload
	}
	return h.Relay.RelayDescription(kind, ch, room, sid, to, sdp)
}

// Candidate relays an ICE candidate on either channel.
func (h *Hub) Candidate(sid core.SessionID, ch domain.Channel, room domain.RoomID, to core.SessionID, cand webrtc.ICECandidateInit) error {
	if _, err := h.session(sid); err != nil {
		return err
	}
	if !ch.Valid() || to == "" {
		return ErrBadPayload
	}
	return h.Relay.RelayCandidate(ch, room, sid, to, cand)
}

// StartScreen announces to the room that sid started sharing its screen.
func (h *Hub) StartScreen(sid core.SessionID, room domain.RoomID) error {
	return h.setScreen(sid, room, true)
}

// StopScreen announces to the room that sid stopped sharing its screen.
func (h *Hub) StopScreen(sid core.SessionID, room domain.RoomID) error {
	return h.setScreen(sid, room, false)
}

func (h *Hub) setScreen(sid core.SessionID, room domain.RoomID, on bool) error {
	sess, err := h.inRoom(sid, room)
	if err != nil {
		return err
	}
	if _, ok := h.Registry.SetScreen(sid, room, on); !ok {
		return ErrNotInRoom
	}
	h.Broadcaster.ScreenChanged(room, sid, sess.Meta().User.ID, on)
	log.Info().Str("module", "hub").Str("sid", string(sid)).Str("room", string(room)).Bool("sharing", on).Msg("screen share")
	return nil
}
