// Package fsm drives an entity through a set of mutually exclusive states.
// Transitions are requested synchronously by dispatched methods or later by
// named timers, which may block on or cancel one another.
package fsm

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"time"
	"weak"

	"github.com/google/uuid"
	lfsm "github.com/looplab/fsm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/stateforward/go-fsm/clock"
	"github.com/stateforward/go-fsm/embedded"
	"github.com/stateforward/go-fsm/pkg/set"
	"github.com/stateforward/go-fsm/pkg/telemetry"
)

const (
	lifecycleStopped = "stopped"
	lifecycleRunning = "running"
	eventSpin        = "spin"
	eventStop        = "stop"
)

// Machine owns the registered state types, the active state and the live
// timers. All of them are guarded by one mutex; timer expiry takes the same
// mutex on the clock's goroutine.
type Machine struct {
	ctx    context.Context
	id     string
	schema Schema

	mu          sync.Mutex
	types       map[string]*registered
	order       []string
	fieldTypes  map[string]reflect.Type
	lifecycle   *lfsm.FSM
	active      any
	activeType  *registered
	timers      map[string]*timer
	transitions set.Set[embedded.Transition]

	clock   clock.Clock
	logger  *zap.SugaredLogger
	tracer  trace.Tracer
	onError func(timer string, err error)
	self    weak.Pointer[Machine]
}

var (
	_ embedded.Machine = (*Machine)(nil)
	_ owner            = (*Machine)(nil)
)

type Option func(*Machine)

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithClock sets the scheduling primitive timers are armed on.
func WithClock(c clock.Clock) Option {
	return func(m *Machine) {
		m.clock = c
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(m *Machine) {
		m.tracer = tracer
	}
}

func WithId(id string) Option {
	return func(m *Machine) {
		m.id = id
	}
}

// WithErrorHandler sets a callback for timer actions that fail or panic. It is
// called on the clock's goroutine after the machine lock has been released.
func WithErrorHandler(fn func(timer string, err error)) Option {
	return func(m *Machine) {
		m.onError = fn
	}
}

// New returns a stopped machine that validates every state type against
// schema. The schema is copied and cannot change afterwards.
func New(ctx context.Context, schema Schema, opts ...Option) *Machine {
	m := &Machine{
		ctx:         ctx,
		schema:      schema.clone(),
		types:       map[string]*registered{},
		timers:      map[string]*timer{},
		transitions: set.New[embedded.Transition](),
		clock:       clock.Real(),
		logger:      zap.NewNop().Sugar(),
		tracer:      telemetry.NewProvider().Tracer("fsm"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.id == "" {
		m.id = uuid.NewString()
	}
	m.logger = m.logger.Named("fsm").With("machine", m.id)
	m.self = weak.Make(m)
	m.lifecycle = lfsm.NewFSM(
		lifecycleStopped,
		lfsm.Events{
			{Name: eventSpin, Src: []string{lifecycleStopped}, Dst: lifecycleRunning},
			{Name: eventStop, Src: []string{lifecycleRunning}, Dst: lifecycleStopped},
		},
		lfsm.Callbacks{
			"enter_state": func(ctx context.Context, e *lfsm.Event) {
				m.logger.Debugw("lifecycle changed", "from", e.Src, "to", e.Dst)
			},
		},
	)
	return m
}

func (m *Machine) trace(operation string, attrs ...attribute.KeyValue) func(error) {
	attrs = append(attrs, attribute.String("fsm.machine", m.id))
	_, end := telemetry.Start(m.ctx, m.tracer, "fsm."+operation, attrs...)
	return end
}

// AddState validates t against the schema and registers it. Validation happens
// once here and never again on a switch.
func (m *Machine) AddState(t StateType) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := m.trace("AddState", attribute.String("fsm.state", t.name))
	defer func() { end(err) }()

	if t.name == "" {
		return errorf(ErrRegistration, "state type has no name")
	}
	if _, ok := m.types[t.name]; ok {
		return errorf(ErrDuplicateState, "state %s already exists", t.name)
	}
	r, err := m.schema.validate(t, m.fieldTypes)
	if err != nil {
		m.logger.Debugw("rejected state", "state", t.name, "error", err)
		return err
	}
	if m.fieldTypes == nil {
		m.fieldTypes = r.fieldTypes()
	}
	m.types[t.name] = r
	m.order = append(m.order, t.name)
	m.logger.Debugw("registered state", "state", t.name)
	return nil
}

// MustAddState is AddState for static setups; it panics on error and returns
// the machine so registrations can be chained.
func (m *Machine) MustAddState(t StateType) *Machine {
	if err := m.AddState(t); err != nil {
		panic(err)
	}
	return m
}

// Spin constructs the named state and makes it active. The machine must be
// stopped; use Switch to move between states while running.
func (m *Machine) Spin(name string) (_ any, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := m.trace("Spin", attribute.String("fsm.state", name))
	defer func() { end(err) }()

	if m.running() {
		return nil, errorf(ErrRunning, "trying to spin state %s while machine is running", name)
	}
	if _, ok := m.types[name]; !ok {
		return nil, errorf(ErrUnknownState, "trying to spin non-existing state %s", name)
	}
	if err := m.lifecycle.Event(m.ctx, eventSpin); err != nil {
		return nil, wrap(ErrLifecycle, err, "spinning state %s", name)
	}
	// Entry actions may start timers, so the machine runs while the state is
	// built. Any failure, panics included, stops it again.
	started := false
	defer func() {
		if !started {
			m.drain()
			m.lifecycle.SetState(lifecycleStopped)
		}
	}()
	r, instance, err := m.spin(name)
	if err != nil {
		return nil, err
	}
	started = true
	m.active, m.activeType = instance, r
	m.transitions.Add(embedded.Transition{"", name})
	m.logger.Debugw("spun state", "state", name)
	return instance, nil
}

// spin constructs a fresh instance of the named state and runs its entry
// action. It does not touch the active slot.
func (m *Machine) spin(name string) (*registered, any, error) {
	r, ok := m.types[name]
	if !ok {
		return nil, nil, errorf(ErrUnknownState, "trying to spin non-existing state %s", name)
	}
	instance := r.construct(binding{machine: m.self})
	if instance == nil {
		return nil, nil, errorf(ErrEntry, "constructor of state %s returned nil", name)
	}
	if enterer, ok := instance.(Enterer); ok {
		if err := enterer.Enter(); err != nil {
			return nil, nil, wrap(ErrEntry, err, "entering state %s", name)
		}
	}
	return r, instance, nil
}

// Switch replaces the active state with a fresh instance of the named state,
// carrying the schema data fields over. Switching to the active state is a
// no-op that returns the current instance.
func (m *Machine) Switch(name string) (_ any, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := m.trace("Switch", attribute.String("fsm.state", name))
	defer func() { end(err) }()
	return m.switchTo(name)
}

func (m *Machine) switchTo(name string) (any, error) {
	if m.active == nil {
		return nil, errorf(ErrStopped, "trying to switch to state %s while machine is stopped", name)
	}
	if name == m.activeType.name {
		return m.active, nil
	}
	from := m.activeType.name
	values := m.activeType.capture(m.active)
	r, instance, err := m.spin(name)
	if err != nil {
		return nil, err
	}
	r.restore(instance, values)
	m.active, m.activeType = instance, r
	m.transitions.Add(embedded.Transition{from, name})
	recordTransition(m.id, from, name)
	m.logger.Debugw("switched state", "from", from, "to", name)
	return instance, nil
}

// Call invokes the named method on the active state and returns its result.
// Methods may return nothing, a value, an error or a value and an error.
func (m *Machine) Call(method string, args ...any) (_ any, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := m.trace("Call", attribute.String("fsm.method", method))
	defer func() { end(err) }()

	m.logger.Debugw("calling", "method", method, "args", args)
	if m.active == nil {
		return nil, errorf(ErrStopped, "trying to call method %s while machine is stopped", method)
	}
	found, ok := m.activeType.lookup(method)
	if !ok {
		return nil, errorf(ErrUnknownMethod, "state %s has no method %s", m.activeType.name, method)
	}
	fn, ok := found.bind(reflect.ValueOf(m.active))
	if !ok {
		return nil, errorf(ErrUnknownMethod, "method %s of state %s is nil", method, m.activeType.name)
	}
	recordCall(m.id, method)
	return invoke(fn, method, args)
}

// Timer creates and starts a named timer. It fails if a timer with the same
// name is live, or if any timer in blockedBy is live; in both cases nothing
// changes. On start every live timer named in cancels is stopped.
func (m *Machine) Timer(name string, data TimerData, blockedBy, cancels []string) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := m.trace("Timer", attribute.String("fsm.timer", name), attribute.String("fsm.delay", data.Delay.String()))
	defer func() { end(err) }()
	return m.timer(name, data, blockedBy, cancels)
}

func (m *Machine) timer(name string, data TimerData, blockedBy, cancels []string) error {
	if !m.running() {
		return errorf(ErrStopped, "trying to create timer %s while machine is stopped", name)
	}
	if data.Delay < 0 {
		return errorf(ErrInvalidDelay, "timer %s has negative delay %s", name, data.Delay)
	}
	if _, ok := m.timers[name]; ok {
		return errorf(ErrDuplicateTimer, "trying to create already existing timer %s", name)
	}
	t := &timer{
		id:        uuid.New(),
		name:      name,
		data:      data,
		blockedBy: set.New(blockedBy...),
		cancels:   set.New(cancels...),
		owner:     m.self,
	}
	m.timers[name] = t
	if err := t.start(); err != nil {
		m.remove(t)
		recordTimer(m.id, outcomeBlocked, len(m.timers))
		m.logger.Debugw("timer not started", "timer", name, "error", err)
		return err
	}
	recordTimer(m.id, outcomeStarted, len(m.timers))
	m.logger.Debugw("timer started", "timer", name, "id", t.id, "delay", data.Delay)
	return nil
}

// Stop clears the active state and stops every live timer, so no timer action
// runs against a stopped machine. The machine's metric series are dropped. It
// can be spun again afterwards.
func (m *Machine) Stop() (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := m.trace("Stop")
	defer func() { end(err) }()

	if !m.running() {
		return errorf(ErrStopped, "trying to stop already stopped machine")
	}
	m.drain()
	m.active, m.activeType = nil, nil
	if err := m.lifecycle.Event(m.ctx, eventStop); err != nil {
		return wrap(ErrLifecycle, err, "stopping machine")
	}
	forgetMachine(m.id)
	m.logger.Debugw("stopped")
	return nil
}

func (m *Machine) drain() {
	for _, name := range m.timerNames() {
		m.cancel(name)
	}
}

func (m *Machine) running() bool {
	return m.lifecycle.Current() == lifecycleRunning
}

func (m *Machine) timerNames() []string {
	names := set.New[string]()
	for name := range m.timers {
		names.Add(name)
	}
	return set.Sorted(names)
}

// live, cancel, remove, schedule and expire are the owner side of a timer.
// All but expire run with the machine lock held.

func (m *Machine) live(name string) bool {
	_, ok := m.timers[name]
	return ok
}

func (m *Machine) cancel(name string) {
	t, ok := m.timers[name]
	if !ok {
		m.logger.Debugw("nothing to cancel", "timer", name)
		return
	}
	t.stop()
	recordTimer(m.id, outcomeCancelled, len(m.timers))
	m.logger.Debugw("timer cancelled", "timer", name, "id", t.id)
}

func (m *Machine) remove(t *timer) {
	if current, ok := m.timers[t.name]; ok && current == t {
		delete(m.timers, t.name)
	}
}

func (m *Machine) schedule(d time.Duration, fn func()) clock.Timer {
	return m.clock.AfterFunc(d, fn)
}

// expire runs on the clock's goroutine. An expiry that lost the race against
// a stop or cancel finds the timer gone from the table and does nothing.
func (m *Machine) expire(t *timer) {
	m.mu.Lock()
	if current, ok := m.timers[t.name]; !ok || current != t {
		m.mu.Unlock()
		m.logger.Debugw("discarding stale expiry", "timer", t.name, "id", t.id)
		return
	}
	end := m.trace("Expire", attribute.String("fsm.timer", t.name))
	err := t.run()
	m.remove(t)
	recordTimer(m.id, outcomeFired, len(m.timers))
	if err != nil {
		err = wrap(ErrTimerAction, err, "timer %s", t.name)
		recordTimerFailure(m.id, t.name)
		m.logger.Warnw("timer action failed", "timer", t.name, "id", t.id, "error", err)
	} else {
		m.logger.Debugw("timer fired", "timer", t.name, "id", t.id)
	}
	end(err)
	onError := m.onError
	m.mu.Unlock()

	if err != nil && onError != nil {
		onError(t.name, err)
	}
}

func (m *Machine) Id() string {
	return m.id
}

// State returns the name of the active state, or "" while stopped.
func (m *Machine) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeType == nil {
		return ""
	}
	return m.activeType.name
}

// Active returns the active state instance, or nil while stopped.
func (m *Machine) Active() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Machine) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running()
}

// States returns the registered state names in registration order.
func (m *Machine) States() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Timers returns the names of the live timers, sorted.
func (m *Machine) Timers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timerNames()
}

func (m *Machine) TimerActive(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live(name)
}

// Transitions returns every distinct transition observed so far. A spin is
// recorded with an empty source.
func (m *Machine) Transitions() []embedded.Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return set.SortedFunc(m.transitions, func(a, b embedded.Transition) int {
		if c := strings.Compare(a[0], b[0]); c != 0 {
			return c
		}
		return strings.Compare(a[1], b[1])
	})
}
