package decode

import "fmt"

// RotationChannel is the derived state of one rotating element (a wheel or a crank).
// The zero value means nothing has been observed yet. Any non-zero counter counts as an
// observation, so states restored without Initialized still track from where they left off.
type RotationChannel struct {
	CumulativeRevolutions uint32   `json:"cumulativeRevolutions"`
	LastEventTime         uint16   `json:"lastEventTime"`
	RPM                   Quantity `json:"rpm"`
	StaleCount            uint8    `json:"staleCount"`
	Initialized           bool     `json:"initialized"`
}

// RotationState is the derived state threaded through the CSC and cycling power decoders.
type RotationState struct {
	Wheel RotationChannel `json:"wheel"`
	Crank RotationChannel `json:"crank"`
}

// ChannelConfig describes how to interpret one revolution counter.
type ChannelConfig struct {
	// TicksPerSecond is the event time resolution: 1024 or 2048.
	TicksPerSecond float64
	// StaleAfter is the number of consecutive frames without movement tolerated before RPM drops to zero.
	StaleAfter uint8
	// CounterBits is the native width of the revolution counter, 16 or 32.
	CounterBits uint
}

var (
	CSCWheelChannel   = ChannelConfig{TicksPerSecond: 1024, StaleAfter: 2, CounterBits: 32}
	CSCCrankChannel   = ChannelConfig{TicksPerSecond: 1024, StaleAfter: 2, CounterBits: 16}
	PowerWheelChannel = ChannelConfig{TicksPerSecond: 2048, StaleAfter: 2, CounterBits: 32}
	PowerCrankChannel = ChannelConfig{TicksPerSecond: 1024, StaleAfter: 10, CounterBits: 16}
)

func (r RotationChannel) observed() bool {
	return r.Initialized || r.CumulativeRevolutions != 0 || r.LastEventTime != 0
}

func (c ChannelConfig) counterMask() uint32 {
	if c.CounterBits == 0 || c.CounterBits >= 32 {
		return 0xffffffff
	}
	return 1<<c.CounterBits - 1
}

// TrackRotation folds one (revolutions, eventTime) observation into prior and returns the new channel state.
// The first observation only seeds the counters. A frame with no new revolutions or no elapsed time
// keeps the previous RPM and counts towards staleness; RPM is forced to zero once the count passes StaleAfter.
func TrackRotation(prior RotationChannel, revolutions uint32, eventTime uint16, cfg ChannelConfig) RotationChannel {
	mask := cfg.counterMask()
	revolutions &= mask

	next := RotationChannel{
		CumulativeRevolutions: revolutions,
		LastEventTime:         eventTime,
		RPM:                   Q(0, UnitRPM),
		Initialized:           true,
	}
	if !prior.observed() {
		return next
	}

	deltaRevolutions := (revolutions - prior.CumulativeRevolutions) & mask
	deltaTime := int(eventTime) - int(prior.LastEventTime)
	if deltaTime < 0 {
		deltaTime += 1 << 16
	}

	if deltaTime == 0 || deltaRevolutions == 0 {
		next.RPM = Q(prior.RPM.Value, UnitRPM)
		next.StaleCount = prior.StaleCount
		if next.StaleCount < 0xff {
			next.StaleCount++
		}
	} else {
		next.RPM = Q(cfg.TicksPerSecond*float64(deltaRevolutions)/float64(deltaTime)*60, UnitRPM)
	}

	if next.StaleCount > cfg.StaleAfter {
		next.RPM = Q(0, UnitRPM)
	}
	return next
}

// WheelSpeedDistance converts a wheel channel into linear speed and total distance.
// Metric circumference gives km/h and km, inches give mph and mi. Any other unit yields nil for both.
func WheelSpeedDistance(wheel RotationChannel, circumference Quantity) (speed, distance *Quantity) {
	c := circumference.Value
	revs := float64(wheel.CumulativeRevolutions)
	switch circumference.Unit {
	case UnitMeter:
		return Q(wheel.RPM.Value*c*60/1000, UnitKmh).Ptr(), Q(c*revs/1000, UnitKilometer).Ptr()
	case UnitInch:
		return Q(wheel.RPM.Value*c*3.6/63360, UnitMph).Ptr(), Q(c*revs/63360, UnitMile).Ptr()
	default:
		return nil, nil
	}
}

// WheelRevolutions is the wheel block of a CSC or cycling power measurement.
type WheelRevolutions struct {
	CumulativeRevolutions uint32    `json:"cumulativeRevolutions"`
	LastEventTime         uint16    `json:"lastEventTime"`
	RPM                   Quantity  `json:"rpm"`
	Speed                 *Quantity `json:"speed,omitempty"`
	Distance              *Quantity `json:"distance,omitempty"`
}

// CrankRevolutions is the crank block of a CSC or cycling power measurement.
type CrankRevolutions struct {
	CumulativeRevolutions uint16   `json:"cumulativeRevolutions"`
	LastEventTime         uint16   `json:"lastEventTime"`
	Cadence               Quantity `json:"cadence"`
}

// readWheelBlock consumes a u32 revolution count and u16 event time at off.
func readWheelBlock(buf []byte, off int, prior RotationChannel, cfg ChannelConfig, circumference Quantity) (*WheelRevolutions, RotationChannel, int, error) {
	revs, off, err := ReadUint32(buf, off)
	if err != nil {
		return nil, prior, off, fmt.Errorf("wheel revolutions: %w", err)
	}
	eventTime, off, err := ReadUint16(buf, off)
	if err != nil {
		return nil, prior, off, fmt.Errorf("wheel event time: %w", err)
	}
	state := TrackRotation(prior, revs, eventTime, cfg)
	speed, distance := WheelSpeedDistance(state, circumference)
	return &WheelRevolutions{
		CumulativeRevolutions: revs,
		LastEventTime:         eventTime,
		RPM:                   state.RPM,
		Speed:                 speed,
		Distance:              distance,
	}, state, off, nil
}

// readCrankBlock consumes a u16 revolution count and u16 event time at off.
func readCrankBlock(buf []byte, off int, prior RotationChannel, cfg ChannelConfig) (*CrankRevolutions, RotationChannel, int, error) {
	revs, off, err := ReadUint16(buf, off)
	if err != nil {
		return nil, prior, off, fmt.Errorf("crank revolutions: %w", err)
	}
	eventTime, off, err := ReadUint16(buf, off)
	if err != nil {
		return nil, prior, off, fmt.Errorf("crank event time: %w", err)
	}
	state := TrackRotation(prior, uint32(revs), eventTime, cfg)
	return &CrankRevolutions{
		CumulativeRevolutions: revs,
		LastEventTime:         eventTime,
		Cadence:               state.RPM,
	}, state, off, nil
}
