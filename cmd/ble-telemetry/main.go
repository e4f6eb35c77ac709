package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lowaak/smart-trainer/ble-telemetry/internal/bt"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/config"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/ftms"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/logging"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/record"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/session"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/sim"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/ui"
	"github.com/rivo/tview"
	"github.com/spf13/pflag"
	"tinygo.org/x/bluetooth"
)

// roles maps the services a sensor offers to the names its address is remembered under.
var roles = []struct {
	service string
	role    string
}{
	{bt.ServiceHeartRate, "heart_rate"},
	{bt.ServiceCyclingSpeedCad, "speed_cadence"},
	{bt.ServiceCyclingPower, "power"},
	{bt.ServiceFitnessMachine, "trainer"},
}

var notifyServices = []string{
	bt.ServiceHeartRate,
	bt.ServiceCyclingSpeedCad,
	bt.ServiceCyclingPower,
	bt.ServiceFitnessMachine,
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var logBuffer *ui.LogBuffer
	var logPane io.Writer = os.Stderr
	if cfg.UI {
		logBuffer = ui.NewLogBuffer()
		logPane = logBuffer
	}
	logger, closeLog := logging.New(logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}, logPane)
	defer closeLog()

	if cfg.File != "" {
		logger.Printf("Config: loaded %s", cfg.File)
	}
	for _, w := range cfg.Warnings {
		logger.Printf("Config: %s", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New(cfg.SessionConfig(), logger)

	var recorder *record.Recorder
	if cfg.FITOutput != "" {
		recorder = record.NewRecorder(time.Second, logger)
		snapshots := make(chan session.Snapshot, 16)
		unregister := sess.ListenToSnapshot(snapshots)
		defer unregister()
		recorder.Run(ctx, snapshots)
	}

	var trainer ui.Trainer
	var shutdownSources func()
	if cfg.Simulate {
		trainer, shutdownSources = startSimulator(ctx, cfg, sess, logger)
	} else {
		trainer, shutdownSources, err = startBluetooth(ctx, cfg, sess, logger)
		if err != nil {
			logger.Printf("Main: %v", err)
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	if cfg.UI {
		dashboard := ui.NewDashboard(tview.NewApplication(), sess, logBuffer, trainer, logger)
		if err := dashboard.Run(ctx); err != nil {
			logger.Printf("Main: dashboard: %v", err)
		}
	} else {
		runHeadless(ctx, sess, os.Stdout)
	}

	stop()
	shutdownSources()

	if recorder != nil {
		if err := recorder.Save(cfg.FITOutput); err != nil {
			logger.Printf("Main: saving %s: %v", cfg.FITOutput, err)
		}
	}
	logger.Println("Main: bye")
}

// runHeadless writes every measurement to w as one JSON object per line until ctx is done.
func runHeadless(ctx context.Context, sess *session.Session, w io.Writer) {
	var mu sync.Mutex
	enc := json.NewEncoder(w)
	unsubscribe := sess.Subscribe(func(m session.Measurement) {
		mu.Lock()
		defer mu.Unlock()
		enc.Encode(m)
	})
	defer unsubscribe()
	<-ctx.Done()
}

func startSimulator(ctx context.Context, cfg config.Config, sess *session.Session, logger *log.Logger) (ui.Trainer, func()) {
	simCfg := sim.DefaultConfig()
	if cfg.WheelUnit == "m" {
		simCfg.WheelCircumference = cfg.WheelCircumference
	}
	sensor := sim.NewSensor(simCfg, logger)
	sess.Attach(sensor)

	cp := ftms.NewControlPoint(sensor, logger)
	if err := cp.Listen(sensor); err != nil {
		logger.Printf("Main: control point: %v", err)
	}

	simCtx, cancel := context.WithCancel(ctx)
	sensor.Run(simCtx, cfg.SimulateInterval)
	logger.Printf("Main: simulating %s every %s", sensor.Name(), cfg.SimulateInterval)
	return cp, cancel
}

func startBluetooth(ctx context.Context, cfg config.Config, sess *session.Session, logger *log.Logger) (ui.Trainer, func(), error) {
	prefs := config.NewPreferences(cfg.PreferencesFile, logger)
	manager := bt.NewManager(bluetooth.DefaultAdapter, logger, cfg.ScanTimeout)
	if err := manager.Enable(); err != nil {
		return nil, nil, fmt.Errorf("enable BLE stack: %w", err)
	}

	manager.SubscribeToConnections(func(c bt.ConnectionChange) {
		if !c.Connected {
			logger.Printf("Main: %s disconnected, dropping its rotation state", c.Address)
			sess.Reset(c.Address)
		}
	})
	manager.StartScan(notifyServices)

	addresses := cfg.Devices
	if len(addresses) == 0 {
		addresses = prefs.Devices()
	}
	if len(addresses) == 0 {
		logger.Printf("Main: no devices known, connecting to everything found within %s", cfg.ScanTimeout)
		select {
		case <-ctx.Done():
		case <-time.After(cfg.ScanTimeout):
		}
		for _, p := range manager.ScanResults() {
			addresses = append(addresses, p.Address())
		}
	}

	var trainer ui.Trainer
	for _, address := range addresses {
		connectCtx, cancel := context.WithTimeout(ctx, cfg.ScanTimeout)
		p, err := manager.Connect(connectCtx, address)
		cancel()
		if err != nil {
			logger.Printf("Main: %v", err)
			continue
		}
		logger.Printf("Main: connected to %s (%s), %d channels streaming", p.Name(), address, sess.Attach(p))
		for _, r := range roles {
			if p.HasService(r.service) {
				prefs.SetPreferredDevice(r.role, address)
			}
		}
		if trainer == nil && p.HasService(bt.ServiceFitnessMachine) {
			cp := ftms.NewControlPoint(p, logger)
			if err := cp.Listen(p); err != nil {
				logger.Printf("Main: %s control point: %v", address, err)
				continue
			}
			trainer = cp
		}
	}
	if err := manager.StopScan(); err != nil {
		logger.Printf("Main: stop scan: %v", err)
	}
	return trainer, manager.Shutdown, nil
}
