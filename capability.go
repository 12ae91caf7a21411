package fsm

import "weak"

// Capability is handed to a state instance when the machine constructs it. It
// is the only way for the instance to request a switch or a timer, and it may
// only be used from inside a dispatched method, an Enter call or a timer
// action, while the machine is already serializing work.
type Capability interface {
	Switch(name string) (any, error)
	Timer(name string, data TimerData, blockedBy, cancels []string) error
}

// Enterer is implemented by states that need an entry action. Enter runs once,
// right after construction, every time the machine spins into the state.
type Enterer interface {
	Enter() error
}

type unbound struct{}

// Unbound is the Capability for instances built outside a machine. Every
// request fails with ErrUnbound.
var Unbound Capability = unbound{}

func (unbound) Switch(name string) (any, error) {
	return nil, errorf(ErrUnbound, "trying to switch to state %s on an unregistered state", name)
}

func (unbound) Timer(name string, data TimerData, blockedBy, cancels []string) error {
	return errorf(ErrUnbound, "trying to create timer %s of %s on an unregistered state", name, data.Delay)
}

// binding is the Capability a Machine passes to the instances it constructs.
// It does not keep the machine alive.
type binding struct {
	machine weak.Pointer[Machine]
}

func (b binding) Switch(name string) (any, error) {
	m := b.machine.Value()
	if m == nil {
		return nil, errorf(ErrStopped, "trying to switch to state %s on a released machine", name)
	}
	return m.switchTo(name)
}

func (b binding) Timer(name string, data TimerData, blockedBy, cancels []string) error {
	m := b.machine.Value()
	if m == nil {
		return errorf(ErrStopped, "trying to create timer %s on a released machine", name)
	}
	return m.timer(name, data, blockedBy, cancels)
}
