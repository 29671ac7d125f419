package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestOperationTimer(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	stop := OperationTimer("checkpoint", log, 0)
	duration := stop()

	assert.GreaterOrEqual(t, duration, time.Duration(0))
	assert.Contains(t, buf.String(), `"operation":"checkpoint"`)
	assert.NotContains(t, buf.String(), "Slow operation")
}

func TestOperationTimer_WarnsWhenSlow(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	stop := OperationTimer("refresh", log, time.Nanosecond)
	time.Sleep(time.Millisecond)
	stop()

	assert.Contains(t, buf.String(), "Slow operation detected")
}
