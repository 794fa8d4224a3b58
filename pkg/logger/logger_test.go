package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerWritesKeyvals(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "debug", Format: "json", Output: &buf})

	l.With("component", "orders").Info("Order created", "orderID", "ord-1", "items", 2)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Order created", line["msg"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "orders", line["component"])
	assert.Equal(t, "ord-1", line["orderID"])
	assert.Equal(t, float64(2), line["items"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "warn", Output: &buf})

	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestOddKeyvalsAreMarkedMissing(t *testing.T) {
	f := fields([]interface{}{"orderID", "ord-1", "dangling"})
	assert.Equal(t, "ord-1", f["orderID"])
	assert.Equal(t, "missing", f["dangling"])
}
