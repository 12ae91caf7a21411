package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"

	"github.com/stateforward/go-fsm/pkg/telemetry"
)

func TestNoopProvider(t *testing.T) {
	tracer := telemetry.NewProvider().Tracer("fsm")
	ctx := context.Background()
	got, span := tracer.Start(ctx, "op")
	assert.Equal(t, ctx, got)
	assert.False(t, span.IsRecording())
	assert.False(t, span.SpanContext().IsValid())
}

func TestStart(t *testing.T) {
	tracer := telemetry.NewProvider().Tracer("fsm")
	ctx, end := telemetry.Start(context.Background(), tracer, "fsm.Switch", attribute.String("state", "Moving"))
	assert.NotNil(t, ctx)
	assert.NotPanics(t, func() { end(nil) })

	_, end = telemetry.Start(context.Background(), tracer, "fsm.Call")
	assert.NotPanics(t, func() { end(errors.New("boom")) })
}
