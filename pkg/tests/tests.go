// Package tests plays scripted calls against a machine.
package tests

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stateforward/go-fsm"
)

// Step is one call and what must hold after it. A nil Err means the call must
// succeed and return Result; an empty State is not checked.
type Step struct {
	Method string
	Args   []any
	Result any
	Err    error
	State  string
	Timers []string
}

func Call(method string, args ...any) Step {
	return Step{Method: method, Args: args}
}

func (s Step) Returns(result any) Step {
	s.Result = result
	return s
}

func (s Step) Fails(err error) Step {
	s.Err = err
	return s
}

func (s Step) In(state string, timers ...string) Step {
	s.State = state
	s.Timers = timers
	return s
}

// Run plays steps against m in order and reports every mismatch. It returns
// false if any step failed.
func Run(t *testing.T, m *fsm.Machine, steps ...Step) bool {
	t.Helper()
	ok := true
	for i, step := range steps {
		result, err := m.Call(step.Method, step.Args...)
		if step.Err != nil {
			ok = assert.ErrorIs(t, err, step.Err, "step %d: %s", i, step.Method) && ok
		} else if assert.NoError(t, err, "step %d: %s", i, step.Method) {
			ok = assert.Equal(t, step.Result, result, "step %d: %s", i, step.Method) && ok
		} else {
			ok = false
		}
		if step.State == "" {
			continue
		}
		ok = assert.Equal(t, step.State, m.State(), "step %d: %s", i, step.Method) && ok
		if len(step.Timers) == 0 {
			ok = assert.Empty(t, m.Timers(), "step %d: %s", i, step.Method) && ok
		} else {
			ok = assert.Equal(t, step.Timers, m.Timers(), "step %d: %s", i, step.Method) && ok
		}
	}
	return ok
}
