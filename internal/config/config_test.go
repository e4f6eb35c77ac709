package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lowaak/smart-trainer/ble-telemetry/internal/decode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 2.125, cfg.WheelCircumference)
	assert.Equal(t, "m", cfg.WheelUnit)
	assert.Equal(t, uint8(2), cfg.CSCWheelStale)
	assert.Equal(t, uint8(2), cfg.CSCCrankStale)
	assert.Equal(t, uint8(2), cfg.PowerWheelStale)
	assert.Equal(t, uint8(10), cfg.PowerCrankStale)
	assert.Equal(t, 10*time.Second, cfg.ScanTimeout)
	assert.Equal(t, time.Second, cfg.SimulateInterval)
	assert.False(t, cfg.Simulate)
	assert.True(t, cfg.UI)
	assert.Empty(t, cfg.FITOutput)
	assert.Equal(t, 10, cfg.Log.MaxSizeMB)
	assert.Empty(t, cfg.File)
}

func TestLoad_Flags(t *testing.T) {
	cfg, err := Load([]string{
		"--wheel-circumference", "82.6",
		"--wheel-unit", "IN",
		"-d", "AA:BB:CC:DD:EE:FF",
		"--device", "11:22:33:44:55:66",
		"--simulate",
		"--simulate-interval", "250ms",
		"-o", "ride.fit",
		"--ui=false",
	})
	require.NoError(t, err)

	assert.Equal(t, 82.6, cfg.WheelCircumference)
	assert.Equal(t, "in", cfg.WheelUnit)
	assert.Equal(t, []string{"AA:BB:CC:DD:EE:FF", "11:22:33:44:55:66"}, cfg.Devices)
	assert.True(t, cfg.Simulate)
	assert.Equal(t, 250*time.Millisecond, cfg.SimulateInterval)
	assert.Equal(t, "ride.fit", cfg.FITOutput)
	assert.False(t, cfg.UI)
	assert.Empty(t, cfg.Warnings)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("BLE_TELEMETRY_WHEEL_CIRCUMFERENCE", "2.096")
	t.Setenv("BLE_TELEMETRY_CHANNELS_POWER_CRANK_STALE_AFTER", "4")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 2.096, cfg.WheelCircumference)
	assert.Equal(t, uint8(4), cfg.PowerCrankStale)
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	t.Setenv("BLE_TELEMETRY_WHEEL_UNIT", "in")

	cfg, err := Load([]string{"--wheel-unit", "m"})
	require.NoError(t, err)
	assert.Equal(t, "m", cfg.WheelUnit)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
wheel:
  circumference: 2.2
channels:
  csc_crank:
    stale_after: 5
devices:
  - "AA:BB:CC:DD:EE:FF"
fit:
  output: out.fit
log:
  compress: true
`), 0644))

	cfg, err := Load([]string{"--config", path})
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, 2.2, cfg.WheelCircumference)
	assert.Equal(t, uint8(5), cfg.CSCCrankStale)
	assert.Equal(t, []string{"AA:BB:CC:DD:EE:FF"}, cfg.Devices)
	assert.Equal(t, "out.fit", cfg.FITOutput)
	assert.True(t, cfg.Log.Compress)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{name: "zero circumference", args: []string{"--wheel-circumference", "0"}},
		{name: "negative circumference", args: []string{"--wheel-circumference", "-1"}},
		{name: "zero scan timeout", args: []string{"--scan-timeout", "0s"}},
		{name: "zero simulate interval", args: []string{"--simulate", "--simulate-interval", "0s"}},
		{name: "stale after too large", env: map[string]string{"BLE_TELEMETRY_CHANNELS_CSC_WHEEL_STALE_AFTER": "300"}},
		{name: "stale after zero", env: map[string]string{"BLE_TELEMETRY_CHANNELS_CSC_CRANK_STALE_AFTER": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.args)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoad_UnknownUnitWarns(t *testing.T) {
	cfg, err := Load([]string{"--wheel-unit", "furlong", "-d", "AA:BB:CC:DD:EE:FF"})
	require.NoError(t, err)
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], "furlong")
	assert.Equal(t, decode.Unit("furlong"), cfg.WheelCircumferenceQuantity().Unit)
}

func TestConfig_SessionConfig(t *testing.T) {
	cfg, err := Load([]string{"--wheel-circumference", "82", "--wheel-unit", "in"})
	require.NoError(t, err)

	sc := cfg.SessionConfig()
	assert.Equal(t, decode.Q(82, decode.UnitInch), sc.WheelCircumference)
	assert.Equal(t, uint8(10), sc.PowerCrank.StaleAfter)
	assert.Equal(t, 2048.0, sc.PowerWheel.TicksPerSecond)
	assert.Equal(t, uint(16), sc.CSCCrank.CounterBits)
}
