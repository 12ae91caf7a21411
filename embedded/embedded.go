// Package embedded holds the read-only views of a machine that tooling such as
// the diagram generator depends on without importing the engine itself.
package embedded

// Transition is an observed from/to pair of state names.
type Transition = [2]string

type Machine interface {
	Id() string
	// State is the active state name, or "" while stopped.
	State() string
	// States lists registered state names in registration order.
	States() []string
	Transitions() []Transition
	Timers() []string
}
