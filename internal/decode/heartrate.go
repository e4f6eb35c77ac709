package decode

import "fmt"

const (
	hrFlagValueFormat16   = 0
	hrFlagContactDetected = 1
	hrFlagContactSupport  = 2
	hrFlagEnergyExpended  = 3
	hrFlagRRInterval      = 4
)

// HeartRateMeasurement is a decoded Heart Rate Measurement (0x2a37) frame.
type HeartRateMeasurement struct {
	HeartRate       Quantity   `json:"heartRate"`
	ContactDetected *bool      `json:"contactDetected,omitempty"`
	EnergyExpended  *Quantity  `json:"energyExpended,omitempty"`
	RRIntervals     []Quantity `json:"rrIntervals,omitempty"`
}

// DecodeHeartRate decodes a Heart Rate Measurement frame. Contact status is only reported
// when the sensor declares contact support; RR intervals run to the end of the frame.
func DecodeHeartRate(buf []byte) (HeartRateMeasurement, error) {
	var m HeartRateMeasurement

	flags, off, err := ReadUint8(buf, 0)
	if err != nil {
		return m, fmt.Errorf("heart rate flags: %w", err)
	}
	f := uint32(flags)

	if BitSet(f, hrFlagValueFormat16) {
		var v uint16
		v, off, err = ReadUint16(buf, off)
		if err != nil {
			return HeartRateMeasurement{}, fmt.Errorf("heart rate value: %w", err)
		}
		m.HeartRate = Q(float64(v), UnitBPM)
	} else {
		var v uint8
		v, off, err = ReadUint8(buf, off)
		if err != nil {
			return HeartRateMeasurement{}, fmt.Errorf("heart rate value: %w", err)
		}
		m.HeartRate = Q(float64(v), UnitBPM)
	}

	if BitSet(f, hrFlagContactSupport) {
		contact := BitSet(f, hrFlagContactDetected)
		m.ContactDetected = &contact
	}

	if BitSet(f, hrFlagEnergyExpended) {
		var v uint16
		v, off, err = ReadUint16(buf, off)
		if err != nil {
			return HeartRateMeasurement{}, fmt.Errorf("energy expended: %w", err)
		}
		m.EnergyExpended = Q(float64(v), UnitJoule).Ptr()
	}

	if BitSet(f, hrFlagRRInterval) {
		for len(buf)-off >= 2 {
			var v uint16
			v, off, _ = ReadUint16(buf, off)
			m.RRIntervals = append(m.RRIntervals, Q(float64(v)/1024, UnitSecond))
		}
	}

	return m, nil
}
