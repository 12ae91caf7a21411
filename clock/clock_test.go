package clock_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stateforward/go-fsm/clock"
)

type log struct {
	mu    sync.Mutex
	names []string
}

func (l *log) add(name string) func() {
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.names = append(l.names, name)
	}
}

func (l *log) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

func TestMock(t *testing.T) {
	t.Run("fires in deadline order", func(t *testing.T) {
		c := clock.NewMock()
		start := c.Now()
		l := &log{}
		c.AfterFunc(3*time.Second, l.add("c"))
		c.AfterFunc(time.Second, l.add("a"))
		c.AfterFunc(2*time.Second, l.add("b"))

		c.Add(500 * time.Millisecond)
		assert.Empty(t, l.get())
		assert.Equal(t, 3, c.Pending())

		c.Add(2500 * time.Millisecond)
		assert.Equal(t, []string{"a", "b", "c"}, l.get())
		assert.Equal(t, start.Add(3*time.Second), c.Now())
		assert.Zero(t, c.Pending())
	})

	t.Run("callbacks sharing a deadline all run", func(t *testing.T) {
		c := clock.NewMock()
		l := &log{}
		c.AfterFunc(time.Second, l.add("a"))
		c.AfterFunc(time.Second, l.add("b"))
		c.Add(time.Second)
		assert.ElementsMatch(t, []string{"a", "b"}, l.get())
	})

	t.Run("stop prevents firing", func(t *testing.T) {
		c := clock.NewMock()
		var fired atomic.Bool
		timer := c.AfterFunc(time.Second, func() { fired.Store(true) })
		assert.True(t, timer.Stop())
		assert.False(t, timer.Stop())
		assert.Zero(t, c.Pending())
		c.Add(time.Minute)
		assert.False(t, fired.Load())
	})

	t.Run("callbacks may schedule due callbacks", func(t *testing.T) {
		c := clock.NewMock()
		l := &log{}
		c.AfterFunc(time.Second, func() {
			l.add("first")()
			c.AfterFunc(time.Second, l.add("second"))
		})
		c.Add(3 * time.Second)
		assert.Equal(t, []string{"first", "second"}, l.get())
	})

	t.Run("zero delay fires on next add", func(t *testing.T) {
		c := clock.NewMock()
		var fired atomic.Bool
		c.AfterFunc(0, func() { fired.Store(true) })
		c.Add(0)
		assert.True(t, fired.Load())
	})
}

func TestReal(t *testing.T) {
	c := clock.Real()
	var fired atomic.Bool
	done := make(chan struct{})
	c.AfterFunc(10*time.Millisecond, func() {
		fired.Store(true)
		close(done)
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "timer did not fire")
	}
	assert.True(t, fired.Load())

	stopped := c.AfterFunc(time.Hour, func() {})
	assert.True(t, stopped.Stop())
}
