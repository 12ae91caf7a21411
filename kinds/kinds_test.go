package kinds_test

import (
	"testing"

	"github.com/stateforward/go-fsm/kinds"
)

func TestKinds(t *testing.T) {
	if !kinds.IsKind(kinds.DuplicateState, kinds.Registration) {
		t.Errorf("DuplicateState should be a Registration")
	}
	if !kinds.IsKind(kinds.DuplicateState, kinds.Error) {
		t.Errorf("DuplicateState should be an Error")
	}
	if kinds.IsKind(kinds.DuplicateState, kinds.Timer) {
		t.Errorf("DuplicateState should not be a Timer")
	}
	if !kinds.IsKind(kinds.Blocked, kinds.Timer) {
		t.Errorf("Blocked should be a Timer")
	}
	if kinds.IsKind(kinds.Blocked, kinds.DuplicateTimer) {
		t.Errorf("Blocked should not be a DuplicateTimer")
	}
	if !kinds.IsKind(kinds.Stopped, kinds.Lifecycle) {
		t.Errorf("Stopped should be a Lifecycle")
	}
	if kinds.IsKind(kinds.Lifecycle, kinds.Stopped) {
		t.Errorf("Lifecycle should not be a Stopped")
	}
	if kinds.IsKind(kinds.Stopped, kinds.Null) {
		t.Errorf("nothing should be a Null")
	}
}

func TestBases(t *testing.T) {
	bases := kinds.Bases(kinds.Blocked)
	if bases[0] != kinds.Timer&0xff {
		t.Errorf("expected first base to be Timer, got %d", bases[0])
	}
	if bases[1] != kinds.Error&0xff {
		t.Errorf("expected second base to be Error, got %d", bases[1])
	}
	if bases[2] != 0 {
		t.Errorf("expected no further bases, got %d", bases[2])
	}
}
