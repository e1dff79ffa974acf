package app

import (
	"errors"

	"github.com/dkeye/StudyRoom/internal/core"
	"github.com/dkeye/StudyRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

// PublishResult reports delivery stats/backpressure to the hub.
type PublishResult struct {
	SendTo  int
	Dropped []core.MemberSession
}

// Fanout pushes encoded frames into member buffers and applies the
// back-pressure policy. It never blocks on the network.
type Fanout struct {
	Policy Policy
}

func (f *Fanout) SendTo(room domain.RoomID, ms core.MemberSession, frame core.Frame) error {
	err := ms.Signal().TrySend(frame)
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrBackpressure) {
		f.onBackPressure(room, ms)
	}
	return err
}

// Publish sends frame to every member except the one given.
func (f *Fanout) Publish(room domain.RoomID, members []MemberSnap, except core.SessionID, frame core.Frame) PublishResult {
	res := PublishResult{}
	for _, m := range members {
		if m.SID == except {
			continue
		}
		if err := f.SendTo(room, m.Session, frame); err != nil {
			res.Dropped = append(res.Dropped, m.Session)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "app.fanout").Str("room", string(room)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (f *Fanout) onBackPressure(room domain.RoomID, ms core.MemberSession) {
	if f.Policy == nil {
		return
	}
	switch f.Policy.OnBackPressure(room, ms) {
	case KickMember:
		log.Warn().Str("module", "app.fanout").Str("sid", string(ms.ID())).Str("room", string(room)).Msg("kicking slow member")
		ms.Signal().Close()
	case DropFrame, NoAction:
	}
}
