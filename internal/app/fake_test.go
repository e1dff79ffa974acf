package app

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/dkeye/StudyRoom/internal/core"
	"github.com/dkeye/StudyRoom/internal/domain"
	"github.com/stretchr/testify/require"
)

// fakeConn records every frame it is handed.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnectionClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) types(t *testing.T) []string {
	var out []string
	for _, e := range c.events(t) {
		out = append(out, e["type"].(string))
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

func bindFake(t *testing.T, reg *Registry, sid, userID string) *fakeConn {
	t.Helper()
	user, err := domain.NewUser(userID, userID+"@example.com", userID)
	require.NoError(t, err)
	conn := &fakeConn{}
	sess := core.NewMemberSession(core.SessionID(sid), domain.NewMember(user), conn)
	reg.BindSignal(core.SessionID(sid), sess, func() {})
	return conn
}
