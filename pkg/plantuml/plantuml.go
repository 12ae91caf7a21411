// Package plantuml renders a snapshot of a machine as a PlantUML state diagram:
// the registered states, the transitions observed so far, the active state and
// the live timers.
package plantuml

import (
	"fmt"
	"io"
	"strings"

	"github.com/stateforward/go-fsm/embedded"
)

func idFromName(name string) string {
	if name == "" {
		return "[*]"
	}
	return strings.NewReplacer("-", "_", "/", ".", " ", "_").Replace(name)
}

func generateState(builder *strings.Builder, depth int, name string, active bool) {
	indent := strings.Repeat(" ", depth*2)
	tag := ""
	if active {
		tag = " <<active>>"
	}
	fmt.Fprintf(builder, "%sstate %s%s\n", indent, idFromName(name), tag)
}

func generateTransition(builder *strings.Builder, depth int, transition embedded.Transition) {
	indent := strings.Repeat(" ", depth*2)
	fmt.Fprintf(builder, "%s%s ----> %s\n", indent, idFromName(transition[0]), idFromName(transition[1]))
}

func generateTimers(builder *strings.Builder, depth int, active string, timers []string) {
	if active == "" || len(timers) == 0 {
		return
	}
	indent := strings.Repeat(" ", depth*2)
	fmt.Fprintf(builder, "%snote right of %s\n", indent, idFromName(active))
	for _, timer := range timers {
		fmt.Fprintf(builder, "%s  timer %s\n", indent, timer)
	}
	fmt.Fprintf(builder, "%send note\n", indent)
}

func Generate(writer io.Writer, machine embedded.Machine) error {
	var builder strings.Builder
	active := machine.State()
	fmt.Fprintf(&builder, "@startuml %s\n", machine.Id())
	for _, name := range machine.States() {
		generateState(&builder, 1, name, name == active)
	}
	for _, transition := range machine.Transitions() {
		generateTransition(&builder, 0, transition)
	}
	generateTimers(&builder, 0, active, machine.Timers())
	fmt.Fprintln(&builder, "@enduml")
	_, err := io.WriteString(writer, builder.String())
	return err
}
