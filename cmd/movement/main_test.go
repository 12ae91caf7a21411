package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stateforward/go-fsm/examples/movement"
)

func TestRun(t *testing.T) {
	cfg := movement.DefaultConfig()
	cfg.Diagram = true
	var out bytes.Buffer
	err := run(context.Background(), strings.NewReader("wj\nx\nq"), &out, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	text := out.String()
	for _, want := range []string{"STILL", "MOVING", "Moving", "W - Forward", "DASHING", "Dashing", "J - Dash", "@startuml", "state Dashing <<active>>"} {
		assert.Contains(t, text, want)
	}
}

func TestRunEndOfInput(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), strings.NewReader("j"), &out, movement.DefaultConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "nodash - still")
	assert.NotContains(t, out.String(), "@startuml")
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger("verbose")
	assert.Error(t, err)
	logger, err := newLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestRunTimersShareTheOutput(t *testing.T) {
	cfg := movement.DefaultConfig()
	cfg.MoveDuration = time.Millisecond
	in, keys := io.Pipe()
	var out bytes.Buffer

	done := make(chan error, 1)
	go func() {
		done <- run(context.Background(), in, &out, cfg, zaptest.NewLogger(t))
	}()
	for i := 0; i < 20; i++ {
		_, err := io.WriteString(keys, "wwww\n")
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	_, err := io.WriteString(keys, "q\n")
	require.NoError(t, err)
	require.NoError(t, keys.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "run did not return")
	}
	assert.Contains(t, out.String(), "MOVING")
	assert.GreaterOrEqual(t, strings.Count(out.String(), "STILL"), 2)
}
