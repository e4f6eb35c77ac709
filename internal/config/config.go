package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lowaak/smart-trainer/ble-telemetry/internal/decode"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/session"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "BLE_TELEMETRY"

const (
	KeyWheelCircumference = "wheel.circumference"
	KeyWheelUnit          = "wheel.unit"
	KeyCSCWheelStale      = "channels.csc_wheel.stale_after"
	KeyCSCCrankStale      = "channels.csc_crank.stale_after"
	KeyPowerWheelStale    = "channels.power_wheel.stale_after"
	KeyPowerCrankStale    = "channels.power_crank.stale_after"
	KeyDevices            = "devices"
	KeyScanTimeout        = "scan.timeout"
	KeySimulate           = "simulate.enabled"
	KeySimulateInterval   = "simulate.interval"
	KeyFITOutput          = "fit.output"
	KeyUI                 = "ui"
	KeyPreferencesFile    = "preferences.file"
	KeyLogFile            = "log.file"
	KeyLogMaxSizeMB       = "log.max_size_mb"
	KeyLogMaxBackups      = "log.max_backups"
	KeyLogMaxAgeDays      = "log.max_age_days"
	KeyLogCompress        = "log.compress"
)

var ErrInvalid = errors.New("invalid configuration")

type Log struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Config struct {
	File string // config file actually read, empty if none

	WheelCircumference float64
	WheelUnit          string
	CSCWheelStale      uint8
	CSCCrankStale      uint8
	PowerWheelStale    uint8
	PowerCrankStale    uint8

	Devices          []string
	ScanTimeout      time.Duration
	Simulate         bool
	SimulateInterval time.Duration
	FITOutput        string
	UI               bool
	PreferencesFile  string
	Log              Log

	// Warnings are problems that do not stop the program, for the caller to log.
	Warnings []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyWheelCircumference, 2.125)
	v.SetDefault(KeyWheelUnit, "m")
	v.SetDefault(KeyCSCWheelStale, decode.CSCWheelChannel.StaleAfter)
	v.SetDefault(KeyCSCCrankStale, decode.CSCCrankChannel.StaleAfter)
	v.SetDefault(KeyPowerWheelStale, decode.PowerWheelChannel.StaleAfter)
	v.SetDefault(KeyPowerCrankStale, decode.PowerCrankChannel.StaleAfter)
	v.SetDefault(KeyDevices, []string{})
	v.SetDefault(KeyScanTimeout, 10*time.Second)
	v.SetDefault(KeySimulate, false)
	v.SetDefault(KeySimulateInterval, time.Second)
	v.SetDefault(KeyFITOutput, "")
	v.SetDefault(KeyUI, true)
	v.SetDefault(KeyPreferencesFile, DefaultPreferencesPath())
	v.SetDefault(KeyLogFile, "ble-telemetry.log")
	v.SetDefault(KeyLogMaxSizeMB, 10)
	v.SetDefault(KeyLogMaxBackups, 3)
	v.SetDefault(KeyLogMaxAgeDays, 28)
	v.SetDefault(KeyLogCompress, false)
}

// NewFlagSet declares the command line flags. Each one overrides the config key it is bound to.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringP("config", "c", "", "config file (yaml, json or toml)")
	fs.Float64("wheel-circumference", 2.125, "wheel circumference")
	fs.String("wheel-unit", "m", "wheel circumference unit: m or in")
	fs.StringSliceP("device", "d", nil, "address of a sensor to connect, repeatable")
	fs.Duration("scan-timeout", 10*time.Second, "how long to wait for a device to advertise")
	fs.Bool("simulate", false, "use a simulated sensor instead of Bluetooth")
	fs.Duration("simulate-interval", time.Second, "simulated notification interval")
	fs.StringP("fit-output", "o", "", "write a FIT activity file on exit")
	fs.Bool("ui", true, "show the terminal dashboard")
	fs.String("log-file", "ble-telemetry.log", "log file, rotated")
	return fs
}

var flagKeys = map[string]string{
	"wheel-circumference": KeyWheelCircumference,
	"wheel-unit":          KeyWheelUnit,
	"device":              KeyDevices,
	"scan-timeout":        KeyScanTimeout,
	"simulate":            KeySimulate,
	"simulate-interval":   KeySimulateInterval,
	"fit-output":          KeyFITOutput,
	"ui":                  KeyUI,
	"log-file":            KeyLogFile,
}

// Load parses args and merges them over environment variables, the config file and defaults.
func Load(args []string) (Config, error) {
	fs := NewFlagSet("ble-telemetry")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return FromFlags(fs)
}

func FromFlags(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	for flag, key := range flagKeys {
		if f := fs.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, _ := fs.GetString("config")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		File:               v.ConfigFileUsed(),
		WheelCircumference: v.GetFloat64(KeyWheelCircumference),
		WheelUnit:          strings.ToLower(strings.TrimSpace(v.GetString(KeyWheelUnit))),
		Devices:            v.GetStringSlice(KeyDevices),
		ScanTimeout:        v.GetDuration(KeyScanTimeout),
		Simulate:           v.GetBool(KeySimulate),
		SimulateInterval:   v.GetDuration(KeySimulateInterval),
		FITOutput:          v.GetString(KeyFITOutput),
		UI:                 v.GetBool(KeyUI),
		PreferencesFile:    v.GetString(KeyPreferencesFile),
		Log: Log{
			File:       v.GetString(KeyLogFile),
			MaxSizeMB:  v.GetInt(KeyLogMaxSizeMB),
			MaxBackups: v.GetInt(KeyLogMaxBackups),
			MaxAgeDays: v.GetInt(KeyLogMaxAgeDays),
			Compress:   v.GetBool(KeyLogCompress),
		},
	}

	var errs []error
	staleAfter := func(key string) uint8 {
		n := v.GetInt(key)
		if n < 1 || n > 255 {
			errs = append(errs, fmt.Errorf("%w: %s must be between 1 and 255, got %d", ErrInvalid, key, n))
			return 0
		}
		return uint8(n)
	}
	cfg.CSCWheelStale = staleAfter(KeyCSCWheelStale)
	cfg.CSCCrankStale = staleAfter(KeyCSCCrankStale)
	cfg.PowerWheelStale = staleAfter(KeyPowerWheelStale)
	cfg.PowerCrankStale = staleAfter(KeyPowerCrankStale)

	if cfg.WheelCircumference <= 0 {
		errs = append(errs, fmt.Errorf("%w: %s must be positive, got %g", ErrInvalid, KeyWheelCircumference, cfg.WheelCircumference))
	}
	if cfg.ScanTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: %s must be positive", ErrInvalid, KeyScanTimeout))
	}
	if cfg.Simulate && cfg.SimulateInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: %s must be positive", ErrInvalid, KeySimulateInterval))
	}
	if cfg.WheelUnit != "m" && cfg.WheelUnit != "in" {
		cfg.Warnings = append(cfg.Warnings,
			fmt.Sprintf("%s %q is neither m nor in, speed and distance will not be reported", KeyWheelUnit, cfg.WheelUnit))
	}
	if !cfg.Simulate && len(cfg.Devices) == 0 {
		cfg.Warnings = append(cfg.Warnings, "no devices configured, falling back to remembered devices")
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) WheelCircumferenceQuantity() decode.Quantity {
	switch c.WheelUnit {
	case "m":
		return decode.Q(c.WheelCircumference, decode.UnitMeter)
	case "in":
		return decode.Q(c.WheelCircumference, decode.UnitInch)
	default:
		return decode.Q(c.WheelCircumference, decode.Unit(c.WheelUnit))
	}
}

// SessionConfig applies the wheel and staleness settings over the built in channel parameters.
func (c Config) SessionConfig() session.Config {
	sc := session.DefaultConfig()
	sc.WheelCircumference = c.WheelCircumferenceQuantity()
	sc.CSCWheel.StaleAfter = c.CSCWheelStale
	sc.CSCCrank.StaleAfter = c.CSCCrankStale
	sc.PowerWheel.StaleAfter = c.PowerWheelStale
	sc.PowerCrank.StaleAfter = c.PowerCrankStale
	return sc
}
