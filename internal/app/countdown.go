package app

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/StudyRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

const DefaultCountdownTick = time.Second

// CountdownHooks receive countdown progress.
// Tick runs under the room's countdown lock and must not block; it gets the
// initial state, every decrement and the final zero state.
// Done runs after a countdown ran out on its own, outside any lock.
type CountdownHooks struct {
	Tick func(room domain.RoomID, p domain.Pomodoro)
	Done func(room domain.RoomID, p domain.Pomodoro)
}

type countdown struct {
	cancel    context.CancelFunc
	total     int
	remaining int
}

func (cd *countdown) snapshot(running bool) domain.Pomodoro {
	return domain.Pomodoro{
		Running:   running,
		Mode:      domain.PomodoroModeFocus,
		Total:     cd.total,
		Remaining: cd.remaining,
	}
}

type countdownSlot struct {
	mu      sync.Mutex
	current *countdown
	removed bool
}

// Countdowns keeps at most one running countdown per room. Starting a new
// one cancels the old one under the same lock that every tick checks, so a
// superseded countdown can never emit again.
type Countdowns struct {
	tick   time.Duration
	hooks  CountdownHooks
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	slots map[domain.RoomID]*countdownSlot
}

func NewCountdowns(parent context.Context, tick time.Duration, hooks CountdownHooks) *Countdowns {
	if tick <= 0 {
		tick = DefaultCountdownTick
	}
	ctx, cancel := context.WithCancel(parent)
	return &Countdowns{
		tick:   tick,
		hooks:  hooks,
		ctx:    ctx,
		cancel: cancel,
		slots:  make(map[domain.RoomID]*countdownSlot),
	}
}

func (c *Countdowns) acquire(room domain.RoomID) *countdownSlot {
	for {
		c.mu.Lock()
		slot, ok := c.slots[room]
		if !ok {
			slot = &countdownSlot{}
			c.slots[room] = slot
		}
		c.mu.Unlock()

		slot.mu.Lock()
		if !slot.removed {
			return slot
		}
		slot.mu.Unlock()
	}
}

func (c *Countdowns) release(room domain.RoomID, slot *countdownSlot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.current != nil || slot.removed {
		return
	}
	slot.removed = true
	if c.slots[room] == slot {
		delete(c.slots, room)
	}
}

// Start replaces the room's countdown with a fresh one of total ticks.
func (c *Countdowns) Start(room domain.RoomID, total int) domain.Pomodoro {
	ctx, cancel := context.WithCancel(c.ctx)
	cd := &countdown{cancel: cancel, total: total, remaining: total}

	slot := c.acquire(room)
	if old := slot.current; old != nil {
		old.cancel()
		log.Info().Str("module", "app.countdown").Str("room", string(room)).Msg("replacing running countdown")
	}
	slot.current = cd
	snap := cd.snapshot(true)
	if c.hooks.Tick != nil {
		c.hooks.Tick(room, snap)
	}
	slot.mu.Unlock()

	go c.run(ctx, room, slot, cd)
	return snap
}

func (c *Countdowns) run(ctx context.Context, room domain.RoomID, slot *countdownSlot, cd *countdown) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		slot.mu.Lock()
		if slot.current != cd {
			slot.mu.Unlock()
			return
		}
		cd.remaining--
		if cd.remaining > 0 {
			if c.hooks.Tick != nil {
				c.hooks.Tick(room, cd.snapshot(true))
			}
			slot.mu.Unlock()
			continue
		}

		cd.remaining = 0
		slot.current = nil
		final := cd.snapshot(false)
		if c.hooks.Tick != nil {
			c.hooks.Tick(room, final)
		}
		slot.mu.Unlock()
		cd.cancel()

		c.release(room, slot)
		log.Info().Str("module", "app.countdown").Str("room", string(room)).Int("total", cd.total).Msg("countdown finished")
		if c.hooks.Done != nil {
			c.hooks.Done(room, final)
		}
		return
	}
}

// Snapshot returns the running countdown of a room, if any.
func (c *Countdowns) Snapshot(room domain.RoomID) (domain.Pomodoro, bool) {
	c.mu.Lock()
	slot, ok := c.slots[room]
	c.mu.Unlock()
	if !ok {
		return domain.Pomodoro{}, false
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.current == nil {
		return domain.Pomodoro{}, false
	}
	return slot.current.snapshot(true), true
}

func (c *Countdowns) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

// StopAll cancels every countdown; used on shutdown.
func (c *Countdowns) StopAll() {
	c.cancel()
	c.mu.Lock()
	slots := make([]*countdownSlot, 0, len(c.slots))
	for _, s := range c.slots {
		slots = append(slots, s)
	}
	c.slots = make(map[domain.RoomID]*countdownSlot)
	c.mu.Unlock()

	for _, s := range slots {
		s.mu.Lock()
		s.current = nil
		s.removed = true
		s.mu.Unlock()
	}
}
