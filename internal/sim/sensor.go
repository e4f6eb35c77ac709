package sim

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/ble-telemetry/internal/bt"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/decode"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/go_func_utils"
)

// Profile is what the simulated rider is doing.
type Profile struct {
	HeartRate uint8   // bpm
	Power     int16   // W
	Cadence   float64 // rpm
	Speed     float64 // km/h
}

type Config struct {
	Address            string
	Name               string
	Profile            Profile
	WheelCircumference float64 // m
	// Starting counter values, mostly useful for exercising wraparound.
	WheelRevolutions uint32
	CrankRevolutions uint16
}

func DefaultConfig() Config {
	return Config{
		Address:            "SIM:00:00:00:00:01",
		Name:               "Simulated Trainer",
		Profile:            Profile{HeartRate: 120, Power: 180, Cadence: 85, Speed: 28},
		WheelCircumference: 2.125,
	}
}

// rotor accumulates revolutions of one wheel or crank and remembers when the last whole one happened.
type rotor struct {
	revolutions uint64
	fraction    float64
	lastEvent   float64 // seconds since start
}

func (r *rotor) advance(revsPerSecond, now, dt float64) {
	if revsPerSecond <= 0 {
		return
	}
	total := r.fraction + revsPerSecond*dt
	whole := math.Floor(total)
	r.fraction = total - whole
	if whole > 0 {
		r.revolutions += uint64(whole)
		r.lastEvent = now - r.fraction/revsPerSecond
	}
}

func (r *rotor) eventTime(ticksPerSecond float64) uint16 {
	return uint16(uint64(math.Round(r.lastEvent * ticksPerSecond)))
}

// Sensor is an in-process peripheral exposing heart rate, CSC, cycling power and fitness machine
// services. It encodes notification frames from a Profile and answers control point writes.
type Sensor struct {
	cfg Config

	mu         sync.Mutex
	profile    Profile
	elapsed    float64
	wheel      rotor
	crank      rotor
	resistance uint8
	callbacks  map[string]func([]byte)

	logger *log.Logger
}

var _ bt.Peripheral = (*Sensor)(nil)

func NewSensor(cfg Config, logger *log.Logger) *Sensor {
	if logger == nil {
		panic("Sensor: logger cannot be nil")
	}
	if cfg.WheelCircumference <= 0 {
		cfg.WheelCircumference = DefaultConfig().WheelCircumference
	}
	return &Sensor{
		cfg:       cfg,
		profile:   cfg.Profile,
		wheel:     rotor{revolutions: uint64(cfg.WheelRevolutions)},
		crank:     rotor{revolutions: uint64(cfg.CrankRevolutions)},
		callbacks: make(map[string]func([]byte)),
		logger:    logger,
	}
}

func (s *Sensor) SetProfile(p Profile) {
	s.mu.Lock()
	s.profile = p
	s.mu.Unlock()
}

func (s *Sensor) Profile() Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Advance moves simulated time forward by dt.
func (s *Sensor) Advance(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	secs := dt.Seconds()
	s.elapsed += secs
	wheelRate := s.profile.Speed / 3.6 / s.cfg.WheelCircumference
	s.wheel.advance(wheelRate, s.elapsed, secs)
	s.crank.advance(s.profile.Cadence/60, s.elapsed, secs)
}

// Frames encodes the current notification frame of every notify characteristic, keyed by characteristic UUID.
func (s *Sensor) Frames() map[string][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string][]byte{
		bt.CharHeartRateMeasurement:    s.heartRateFrame(),
		bt.CharCSCMeasurement:          s.cscFrame(),
		bt.CharCyclingPowerMeasurement: s.powerFrame(),
		bt.CharIndoorBikeData:          s.indoorBikeFrame(),
	}
}

func (s *Sensor) heartRateFrame() []byte {
	hr := s.profile.HeartRate
	if hr == 0 {
		return []byte{0x00, 0}
	}
	// one RR interval per frame
	rr := uint16(math.Round(60.0 / float64(hr) * 1024))
	return binary.LittleEndian.AppendUint16([]byte{0x10, hr}, rr)
}

func (s *Sensor) cscFrame() []byte {
	buf := []byte{0x03}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(s.wheel.revolutions))
	buf = binary.LittleEndian.AppendUint16(buf, s.wheel.eventTime(1024))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(s.crank.revolutions))
	return binary.LittleEndian.AppendUint16(buf, s.crank.eventTime(1024))
}

func (s *Sensor) powerFrame() []byte {
	buf := binary.LittleEndian.AppendUint16(nil, 0x0030)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(s.profile.Power))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(s.wheel.revolutions))
	buf = binary.LittleEndian.AppendUint16(buf, s.wheel.eventTime(2048))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(s.crank.revolutions))
	return binary.LittleEndian.AppendUint16(buf, s.crank.eventTime(1024))
}

func (s *Sensor) indoorBikeFrame() []byte {
	// bit0 clear: speed present; bit2 cadence; bit5 resistance; bit6 power
	buf := binary.LittleEndian.AppendUint16(nil, 0x0064)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(math.Round(s.profile.Speed*100)))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(math.Round(s.profile.Cadence*20)))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(s.resistance))
	return binary.LittleEndian.AppendUint16(buf, uint16(s.profile.Power))
}

// Notify advances time by dt and pushes the resulting frames to subscribers.
func (s *Sensor) Notify(dt time.Duration) {
	s.Advance(dt)
	frames := s.Frames()

	s.mu.Lock()
	targets := make(map[string]func([]byte), len(s.callbacks))
	for k, fn := range s.callbacks {
		targets[k] = fn
	}
	s.mu.Unlock()

	for char, fn := range targets {
		if frame, ok := frames[char]; ok {
			fn(frame)
		}
	}
}

// Run calls Notify every interval until ctx is done.
func (s *Sensor) Run(ctx context.Context, interval time.Duration) {
	go_func_utils.SafeGo(s.logger, "sim", func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Notify(interval)
			}
		}
	})
}

func (s *Sensor) Address() string { return s.cfg.Address }

func (s *Sensor) Name() string { return s.cfg.Name }

func (s *Sensor) RSSI() (int16, error) { return -40, nil }

func (s *Sensor) State() bt.DeviceState { return bt.Connected }

func (s *Sensor) Services() []string {
	return []string{
		bt.ServiceHeartRate,
		bt.ServiceBattery,
		bt.ServiceDeviceInformation,
		bt.ServiceCyclingSpeedCad,
		bt.ServiceCyclingPower,
		bt.ServiceFitnessMachine,
	}
}

func (s *Sensor) HasService(uuid string) bool {
	for _, svc := range s.Services() {
		if svc == uuid {
			return true
		}
	}
	return false
}

func (s *Sensor) Subscribe(service, characteristic string, fn func(buf []byte)) error {
	if !s.HasService(service) {
		return fmt.Errorf("service %s not found on %s", service, s.cfg.Address)
	}
	switch characteristic {
	case bt.CharHeartRateMeasurement, bt.CharCSCMeasurement, bt.CharCyclingPowerMeasurement,
		bt.CharIndoorBikeData, bt.CharFitnessMachineControlPoint:
	default:
		return fmt.Errorf("characteristic %s does not notify", characteristic)
	}
	s.mu.Lock()
	s.callbacks[characteristic] = fn
	s.mu.Unlock()
	return nil
}

func (s *Sensor) Unsubscribe(service, characteristic string) error {
	s.mu.Lock()
	delete(s.callbacks, characteristic)
	s.mu.Unlock()
	return nil
}

var staticReads = map[string][]byte{
	bt.CharBodySensorLocation:       {0x01},
	bt.CharSensorLocation:           {0x05},
	bt.CharCyclingPowerFeature:      {0x0C, 0x00},
	bt.CharCSCFeature:               {0x03, 0x00},
	bt.CharFitnessMachineFeature:    {0x82, 0x40, 0x00, 0x00, 0x0C, 0x00, 0x00, 0x00},
	bt.CharSupportedPowerRange:      {0x00, 0x00, 0xD0, 0x07, 0x01, 0x00},
	bt.CharSupportedResistanceRange: {0x00, 0x00, 0x64, 0x00, 0x01, 0x00},
	bt.CharBatteryLevel:             {100},
	bt.UUID16(0x2a29):               []byte("Simulated"),
	bt.UUID16(0x2a24):               []byte("SIM-1"),
}

func (s *Sensor) Read(service, characteristic string) ([]byte, error) {
	if !s.HasService(service) {
		return nil, fmt.Errorf("service %s not found on %s", service, s.cfg.Address)
	}
	buf, ok := staticReads[characteristic]
	if !ok {
		return nil, fmt.Errorf("characteristic %s not found in service %s", characteristic, service)
	}
	return append([]byte(nil), buf...), nil
}

// Write accepts control point commands and indicates success for each.
func (s *Sensor) Write(service, characteristic string, data []byte) error {
	if characteristic != bt.CharFitnessMachineControlPoint {
		return fmt.Errorf("characteristic %s is not writable", characteristic)
	}
	if len(data) == 0 {
		return fmt.Errorf("empty control point write")
	}

	result := decode.ResultSuccess
	s.mu.Lock()
	switch data[0] {
	case decode.OpRequestControl, decode.OpStartOrResume, decode.OpReset, decode.OpStopOrPause:
	case decode.OpSetTargetResistance:
		if len(data) < 3 {
			result = decode.ResultInvalidParameter
		} else {
			s.resistance = data[2]
		}
	case decode.OpSetTargetPower:
		if len(data) < 3 {
			result = decode.ResultInvalidParameter
		} else {
			s.profile.Power = int16(binary.LittleEndian.Uint16(data[1:]))
		}
	default:
		result = decode.ResultOpCodeNotSupported
	}
	indicate := s.callbacks[bt.CharFitnessMachineControlPoint]
	s.mu.Unlock()

	s.logger.Printf("Sim: control point %s -> %s", decode.OpCodeName(data[0]), result)
	if indicate != nil {
		resp := []byte{decode.OpResponseCode, data[0], byte(result)}
		go_func_utils.SafeGo(s.logger, "sim-indicate", func() { indicate(resp) })
	}
	return nil
}

func (s *Sensor) WriteWithoutResponse(service, characteristic string, data []byte) error {
	return s.Write(service, characteristic, data)
}
