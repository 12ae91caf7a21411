package tests_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stateforward/go-fsm"
	"github.com/stateforward/go-fsm/pkg/tests"
)

type Off struct {
	Level int
	c     fsm.Capability
}

func (s *Off) Toggle() (string, error) {
	if _, err := s.c.Switch("On"); err != nil {
		return "", err
	}
	return "on", nil
}

type On struct {
	Level int
	c     fsm.Capability
}

var errAlreadyOn = errors.New("already on")

func (s *On) Toggle() error {
	return errAlreadyOn
}

func TestRun(t *testing.T) {
	m := fsm.New(context.Background(), fsm.Schema{Data: []string{"Level"}, Methods: []string{"Toggle"}}).
		MustAddState(fsm.Define(func(c fsm.Capability) *Off { return &Off{c: c} })).
		MustAddState(fsm.Define(func(c fsm.Capability) *On { return &On{c: c} }))
	_, err := m.Spin("Off")
	assert.NoError(t, err)

	ok := tests.Run(t, m,
		tests.Call("Toggle").Returns("on").In("On"),
		tests.Call("Toggle").Fails(errAlreadyOn).In("On"),
		tests.Call("Dim", 3).Fails(fsm.ErrUnknownMethod),
	)
	assert.True(t, ok)
}
