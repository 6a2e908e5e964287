package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{" DEBUG ", DebugLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"info", InfoLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestInitJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	logger := WithEndpoint("host-1", "docker", "wl-1", "ep-1")
	logger.Info().Msg("endpoint provisioned")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "endpoint provisioned", entry["message"])
	assert.Equal(t, "host-1", entry["hostname"])
	assert.Equal(t, "docker", entry["orchestrator_id"])
	assert.Equal(t, "wl-1", entry["workload_id"])
	assert.Equal(t, "ep-1", entry["endpoint_id"])
}

func TestInitLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, JSONOutput: true, Output: &buf})

	logger := WithComponent("datastore")
	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger = WithComponent("datastore")
	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), `"component":"datastore"`)
}
