package app

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/StudyRoom/internal/core"
	"github.com/dkeye/StudyRoom/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrStaleNegotiation = errors.New("stale negotiation")
	ErrUnknownTarget    = errors.New("unknown target")
)

// SignalRelay forwards point-to-point signaling between two connections.
// The same code serves the media and the screen channel; only the
// channel discriminator and the wire names differ.
type SignalRelay struct {
	Registry *Registry
	Pending  *NegotiationTracker
	Out      *Fanout
}

// RelayDescription forwards an offer or an answer. Offers open a pending
// exchange; an answer goes through only if it closes one.
func (r *SignalRelay) RelayDescription(kind core.SignalKind, ch domain.Channel, room domain.RoomID, from, to core.SessionID, sdp json.RawMessage) error {
	logger := log.With().
		Str("module", "app.relay").
		Str("channel", string(ch)).
		Str("from", string(from)).
		Str("to", string(to)).
		Logger()

	target, ok := r.Registry.GetSession(to)
	if !ok {
		logger.Debug().Msg("target not connected, dropping")
		return ErrUnknownTarget
	}

	switch kind {
	case core.SignalOffer:
		if r.Pending.MarkPending(from, to, ch) {
			logger.Debug().Msg("re-offer supersedes pending offer")
		}
		// Either side may have been unbound since the lookup above; its
		// Forget has then already run and would miss this entry.
		if !r.bound(from) || !r.bound(to) {
			r.Pending.ConsumeIfPending(to, from, ch)
			logger.Debug().Msg("peer left during offer, dropping")
			return ErrUnknownTarget
		}
	case core.SignalAnswer:
		if !r.Pending.ConsumeIfPending(from, to, ch) {
			logger.Warn().Msg("dropping duplicate/late answer")
			return ErrStaleNegotiation
		}
	default:
		return errors.New("not a description")
	}

	frame, err := core.Encode(core.DescriptionEvent{
		Type:             core.SignalEvent(ch, kind),
		RoomID:           room,
		FromConnectionID: from,
		SDP:              sdp,
	})
	if err != nil {
		return err
	}
	if err := r.Out.SendTo(room, target, frame); err != nil {
		logger.Debug().Err(err).Msg("relay send failed")
		return ErrUnknownTarget
	}
	logger.Debug().Str("event", core.SignalEvent(ch, kind)).Msg("relayed")
	return nil
}

func (r *SignalRelay) bound(sid core.SessionID) bool {
	_, ok := r.Registry.GetSession(sid)
	return ok
}

// RelayCandidate forwards an ICE candidate. Candidates are append-only and
// not part of the offer/answer state machine.
func (r *SignalRelay) RelayCandidate(ch domain.Channel, room domain.RoomID, from, to core.SessionID, cand webrtc.ICECandidateInit) error {
	target, ok := r.Registry.GetSession(to)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("from", string(from)).Str("to", string(to)).Msg("candidate target not connected")
		return ErrUnknownTarget
	}
	frame, err := core.Encode(core.CandidateEvent{
		Type:             core.SignalEvent(ch, core.SignalCandidate),
		RoomID:           room,
		FromConnectionID: from,
		Candidate:        cand,
	})
	if err != nil {
		return err
	}
	if err := r.Out.SendTo(room, target, frame); err != nil {
		return ErrUnknownTarget
	}
	return nil
}
