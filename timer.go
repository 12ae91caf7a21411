package fsm

import (
	"fmt"
	"slices"
	"time"
	"weak"

	"github.com/google/uuid"

	"github.com/stateforward/go-fsm/clock"
	"github.com/stateforward/go-fsm/pkg/set"
)

// Action is the callback a timer runs when it expires.
type Action func(args ...any) error

// TimerData describes a delayed action. It has no identity of its own; the
// name a timer is created under identifies it.
type TimerData struct {
	Delay  time.Duration
	Action Action
	Args   []any
}

func NewTimerData(delay time.Duration, action Action, args ...any) TimerData {
	return TimerData{
		Delay:  delay,
		Action: action,
		Args:   slices.Clone(args),
	}
}

// SwitchAfter returns a TimerData that switches c's machine to the named state
// once delay has elapsed.
func SwitchAfter(c Capability, delay time.Duration, name string) TimerData {
	return NewTimerData(delay, func(args ...any) error {
		_, err := c.Switch(args[0].(string))
		return err
	}, name)
}

// owner is what a timer needs from the machine that created it.
type owner interface {
	live(name string) bool
	cancel(name string)
	remove(t *timer)
	schedule(d time.Duration, fn func()) clock.Timer
	expire(t *timer)
}

type timer struct {
	id        uuid.UUID
	name      string
	data      TimerData
	blockedBy set.Set[string]
	cancels   set.Set[string]
	owner     weak.Pointer[Machine]
	pending   clock.Timer
}

func (t *timer) resolve() owner {
	if m := t.owner.Value(); m != nil {
		return m
	}
	return nil
}

// start refuses to arm while any blocker is live, then cancels every timer in
// the cancel list and arms the delay. A blocked start has no side effects.
func (t *timer) start() error {
	owner := t.resolve()
	if owner == nil {
		return errorf(ErrStopped, "trying to start timer %s on a released machine", t.name)
	}
	for _, blocker := range set.Sorted(t.blockedBy) {
		if blocker != t.name && owner.live(blocker) {
			return errorf(ErrBlocked, "found blocker %q for timer %q", blocker, t.name)
		}
	}
	for _, name := range set.Sorted(t.cancels) {
		if name != t.name {
			owner.cancel(name)
		}
	}
	t.pending = owner.schedule(t.data.Delay, t.expire)
	return nil
}

// stop cancels the pending expiry and removes the timer from its owner.
// Stopping a timer twice is a no-op.
func (t *timer) stop() {
	if t.pending != nil {
		t.pending.Stop()
	}
	if owner := t.resolve(); owner != nil {
		owner.remove(t)
	}
}

func (t *timer) expire() {
	if owner := t.resolve(); owner != nil {
		owner.expire(t)
	}
}

// run invokes the action, turning a panic into an error so the scheduling
// goroutine survives it.
func (t *timer) run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if t.data.Action == nil {
		return nil
	}
	return t.data.Action(t.data.Args...)
}
