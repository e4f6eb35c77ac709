package config

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPreferences_NilLogger(t *testing.T) {
	assert.Panics(t, func() { NewPreferences("x.json", nil) })
}

func TestPreferences_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "devices.json")
	var logs bytes.Buffer
	logger := log.New(&logs, "", 0)

	p := NewPreferences(path, logger)
	assert.Empty(t, p.PreferredDevice("heart_rate"))
	assert.Contains(t, logs.String(), "no existing file")

	p.SetPreferredDevice("heart_rate", "AA")
	p.SetPreferredDevice("trainer", "BB")
	p.SetPreferredDevice("power", "BB")

	reloaded := NewPreferences(path, logger)
	assert.Equal(t, "AA", reloaded.PreferredDevice("heart_rate"))
	assert.Equal(t, "BB", reloaded.PreferredDevice("trainer"))
	assert.Equal(t, []string{"AA", "BB"}, reloaded.Devices())
}

func TestPreferences_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	var logs bytes.Buffer

	p := NewPreferences(path, log.New(&logs, "", 0))
	assert.Contains(t, logs.String(), "failed to parse")
	assert.Empty(t, p.Devices())

	p.SetPreferredDevice("trainer", "CC")
	assert.Equal(t, "CC", p.PreferredDevice("trainer"))
}
