package session

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/ble-telemetry/internal/bt"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/decode"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/events"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/safe_map"
)

var ErrUnknownChannel = errors.New("unknown channel")

// Frame is one raw buffer delivered by a transport.
type Frame struct {
	Device         string
	Channel        Channel
	Characteristic string // needed for device information, where one channel spans several characteristics
	Data           []byte
	Received       time.Time
}

// DeviceInfo is one decoded Device Information string.
type DeviceInfo struct {
	Field decode.DeviceInformationField `json:"field"`
	Value string                        `json:"value"`
}

// Measurement is the envelope published for every decoded frame. Exactly one payload field is set.
type Measurement struct {
	Device  string    `json:"device"`
	Channel Channel   `json:"channel"`
	Time    time.Time `json:"time"`

	HeartRate       *decode.HeartRateMeasurement    `json:"heartRate,omitempty"`
	CSC             *decode.CSCMeasurement          `json:"csc,omitempty"`
	CyclingPower    *decode.CyclingPowerMeasurement `json:"cyclingPower,omitempty"`
	IndoorBike      *decode.IndoorBikeData          `json:"indoorBike,omitempty"`
	Location        *decode.Location                `json:"location,omitempty"`
	Features        decode.Capabilities             `json:"features,omitempty"`
	MachineFeatures *decode.FitnessMachineFeatures  `json:"machineFeatures,omitempty"`
	Range           *decode.Range                   `json:"range,omitempty"`
	Battery         *decode.Quantity                `json:"battery,omitempty"`
	DeviceInfo      *DeviceInfo                     `json:"deviceInfo,omitempty"`
}

// Config carries the per-session decoding parameters.
type Config struct {
	WheelCircumference decode.Quantity
	CSCWheel           decode.ChannelConfig
	CSCCrank           decode.ChannelConfig
	PowerWheel         decode.ChannelConfig
	PowerCrank         decode.ChannelConfig
}

func DefaultConfig() Config {
	return Config{
		WheelCircumference: decode.Q(2.125, decode.UnitMeter),
		CSCWheel:           decode.CSCWheelChannel,
		CSCCrank:           decode.CSCCrankChannel,
		PowerWheel:         decode.PowerWheelChannel,
		PowerCrank:         decode.PowerCrankChannel,
	}
}

type stateKey struct {
	device  string
	channel Channel
}

// rotationSlot owns the derived state of one (device, channel). Its mutex keeps frames of the
// same channel strictly sequential while other channels decode in parallel.
type rotationSlot struct {
	mu    sync.Mutex
	state decode.RotationState
}

// Session routes frames to decoders, threads rotation state between frames and publishes results.
type Session struct {
	mu            sync.RWMutex
	circumference decode.Quantity
	csc           decode.CSCDecoder
	power         decode.CyclingPowerDecoder

	slots *safe_map.SafeMap[stateKey, *rotationSlot]

	measurementEvent *events.Event[Measurement]
	snapshotEvent    *events.Event[Snapshot]
	snapMu           sync.Mutex
	snapshot         Snapshot

	now    func() time.Time
	logger *log.Logger
}

func New(cfg Config, logger *log.Logger) *Session {
	if logger == nil {
		panic("Session: logger cannot be nil")
	}
	return &Session{
		circumference:    cfg.WheelCircumference,
		csc:              decode.CSCDecoder{Wheel: cfg.CSCWheel, Crank: cfg.CSCCrank},
		power:            decode.CyclingPowerDecoder{Wheel: cfg.PowerWheel, Crank: cfg.PowerCrank},
		slots:            safe_map.NewSafeMap[stateKey, *rotationSlot](),
		measurementEvent: events.NewEvent[Measurement](false),
		snapshotEvent:    events.NewEvent[Snapshot](true),
		now:              time.Now,
		logger:           logger,
	}
}

// SetWheelCircumference applies to frames decoded after the call.
func (s *Session) SetWheelCircumference(q decode.Quantity) {
	s.mu.Lock()
	s.circumference = q
	s.mu.Unlock()
}

func (s *Session) WheelCircumference() decode.Quantity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.circumference
}

// Listen registers a channel for every decoded measurement.
func (s *Session) Listen(ch chan<- Measurement) func() {
	return s.measurementEvent.Listen(ch)
}

// Subscribe registers a callback for every decoded measurement. It runs on the transport's goroutine.
func (s *Session) Subscribe(fn func(Measurement)) func() {
	return s.measurementEvent.Subscribe(fn)
}

// ListenToSnapshot registers a channel for the rolled-up latest values.
func (s *Session) ListenToSnapshot(ch chan<- Snapshot) func() {
	return s.snapshotEvent.Listen(ch)
}

// State returns the rotation state held for a device's channel.
func (s *Session) State(device string, channel Channel) decode.RotationState {
	slot, ok := s.slots.Load(stateKey{device, channel})
	if !ok {
		return decode.RotationState{}
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.state
}

// Reset forgets every rotation state of device, typically after it disconnects.
func (s *Session) Reset(device string) {
	var stale []stateKey
	s.slots.Range(func(k stateKey, _ *rotationSlot) bool {
		if k.device == device {
			stale = append(stale, k)
		}
		return true
	})
	for _, k := range stale {
		s.slots.Delete(k)
	}
}

func (s *Session) slot(device string, channel Channel) *rotationSlot {
	slot, _ := s.slots.LoadOrStore(stateKey{device, channel}, func() *rotationSlot { return &rotationSlot{} })
	return slot
}

// HandleFrame decodes one frame. On failure nothing is published and stored state is untouched.
func (s *Session) HandleFrame(f Frame) (Measurement, error) {
	m, err := s.decodeFrame(f)
	if err != nil {
		s.logger.Printf("Session: %s frame from %s dropped: %v [% x]", f.Channel, f.Device, err, f.Data)
		return Measurement{}, err
	}
	s.measurementEvent.Notify(m)
	s.snapshotEvent.Notify(s.fold(m))
	return m, nil
}

func (s *Session) decodeFrame(f Frame) (Measurement, error) {
	m := Measurement{Device: f.Device, Channel: f.Channel, Time: f.Received}
	if m.Time.IsZero() {
		m.Time = s.now()
	}

	switch f.Channel {
	case ChannelHeartRate:
		hr, err := decode.DecodeHeartRate(f.Data)
		if err != nil {
			return m, err
		}
		m.HeartRate = &hr

	case ChannelCSC:
		circ := s.WheelCircumference()
		slot := s.slot(f.Device, f.Channel)
		slot.mu.Lock()
		csc, next, err := s.csc.Decode(f.Data, slot.state, circ)
		if err == nil {
			slot.state = next
		}
		slot.mu.Unlock()
		if err != nil {
			return m, err
		}
		m.CSC = &csc

	case ChannelCyclingPower:
		circ := s.WheelCircumference()
		slot := s.slot(f.Device, f.Channel)
		slot.mu.Lock()
		cp, next, err := s.power.Decode(f.Data, slot.state, circ)
		if err == nil {
			slot.state = next
		}
		slot.mu.Unlock()
		if err != nil {
			return m, err
		}
		m.CyclingPower = &cp

	case ChannelIndoorBikeData:
		ibd, err := decode.DecodeIndoorBikeData(f.Data)
		if err != nil {
			return m, err
		}
		m.IndoorBike = &ibd

	case ChannelBodySensorLocation, ChannelSensorLocation:
		b, _, err := decode.ReadUint8(f.Data, 0)
		if err != nil {
			return m, err
		}
		loc := decode.DecodeSensorLocation(b)
		if f.Channel == ChannelBodySensorLocation {
			loc = decode.DecodeBodySensorLocation(b)
		}
		m.Location = &loc

	case ChannelPowerFeature:
		caps, err := decode.DecodePowerFeature(f.Data)
		if err != nil {
			return m, err
		}
		m.Features = caps

	case ChannelCSCFeature:
		caps, err := decode.DecodeCSCFeature(f.Data)
		if err != nil {
			return m, err
		}
		m.Features = caps

	case ChannelMachineFeature:
		features, err := decode.DecodeFitnessMachineFeature(f.Data)
		if err != nil {
			return m, err
		}
		m.MachineFeatures = &features

	case ChannelPowerRange, ChannelResistanceRange:
		decodeRange := decode.DecodeSupportedPowerRange
		if f.Channel == ChannelResistanceRange {
			decodeRange = decode.DecodeSupportedResistanceRange
		}
		r, err := decodeRange(f.Data)
		if err != nil {
			return m, err
		}
		m.Range = &r

	case ChannelBatteryLevel:
		level, err := decode.DecodeBatteryLevel(f.Data)
		if err != nil {
			return m, err
		}
		m.Battery = &level

	case ChannelDeviceInformation:
		short, ok := bt.ShortUUID(f.Characteristic)
		if !ok {
			return m, fmt.Errorf("%w: device information characteristic %q", decode.ErrUnsupportedField, f.Characteristic)
		}
		field, value, err := decode.DecodeDeviceInformation(short, f.Data)
		if err != nil {
			return m, err
		}
		m.DeviceInfo = &DeviceInfo{Field: field, Value: value}

	default:
		return m, fmt.Errorf("%w: %q", ErrUnknownChannel, f.Channel)
	}
	return m, nil
}
