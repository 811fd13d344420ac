package tracer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitTracer_DisabledIsNoop(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "false")

	shutdown := InitTracer(context.Background())
	assert.NoError(t, shutdown(context.Background()))
}
