package fsm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	namespace = "fsm"

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Total number of state switches",
		},
		[]string{"machine", "from", "to"},
	)

	callsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Total number of methods dispatched to the active state",
		},
		[]string{"machine", "method"},
	)

	timersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timers_total",
			Help:      "Total number of timer events by outcome (started, blocked, cancelled, fired)",
		},
		[]string{"machine", "outcome"},
	)

	timerFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timer_failures_total",
			Help:      "Total number of timer actions that returned an error or panicked",
		},
		[]string{"machine", "timer"},
	)

	liveTimers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_timers",
			Help:      "Number of timers currently armed",
		},
		[]string{"machine"},
	)
)

const (
	outcomeStarted   = "started"
	outcomeBlocked   = "blocked"
	outcomeCancelled = "cancelled"
	outcomeFired     = "fired"
)

func recordTransition(machine, from, to string) {
	transitionsTotal.WithLabelValues(machine, from, to).Inc()
}

func recordCall(machine, method string) {
	callsTotal.WithLabelValues(machine, method).Inc()
}

func recordTimer(machine, outcome string, live int) {
	timersTotal.WithLabelValues(machine, outcome).Inc()
	liveTimers.WithLabelValues(machine).Set(float64(live))
}

func recordTimerFailure(machine, timer string) {
	timerFailuresTotal.WithLabelValues(machine, timer).Inc()
}

// forgetMachine drops every series labelled with machine.
func forgetMachine(machine string) {
	labels := prometheus.Labels{"machine": machine}
	transitionsTotal.DeletePartialMatch(labels)
	callsTotal.DeletePartialMatch(labels)
	timersTotal.DeletePartialMatch(labels)
	timerFailuresTotal.DeletePartialMatch(labels)
	liveTimers.DeletePartialMatch(labels)
}
