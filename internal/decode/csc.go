package decode

import "fmt"

const (
	cscFlagWheelRevolution = 0
	cscFlagCrankRevolution = 1
)

// CSCMeasurement is a decoded CSC Measurement (0x2a5b) frame.
type CSCMeasurement struct {
	Wheel *WheelRevolutions `json:"wheel,omitempty"`
	Crank *CrankRevolutions `json:"crank,omitempty"`
}

// CSCDecoder decodes speed and cadence sensor frames. Both blocks use a 1/1024 s time base.
type CSCDecoder struct {
	Wheel ChannelConfig
	Crank ChannelConfig
}

func NewCSCDecoder() CSCDecoder {
	return CSCDecoder{Wheel: CSCWheelChannel, Crank: CSCCrankChannel}
}

// Decode parses buf against prior. The wheel block precedes the crank block when both are present.
func (d CSCDecoder) Decode(buf []byte, prior RotationState, circumference Quantity) (CSCMeasurement, RotationState, error) {
	var m CSCMeasurement
	next := prior

	flags8, off, err := ReadUint8(buf, 0)
	if err != nil {
		return CSCMeasurement{}, prior, fmt.Errorf("csc flags: %w", err)
	}
	flags := uint32(flags8)

	if BitSet(flags, cscFlagWheelRevolution) {
		m.Wheel, next.Wheel, off, err = readWheelBlock(buf, off, prior.Wheel, d.Wheel, circumference)
		if err != nil {
			return CSCMeasurement{}, prior, err
		}
	}

	if BitSet(flags, cscFlagCrankRevolution) {
		m.Crank, next.Crank, _, err = readCrankBlock(buf, off, prior.Crank, d.Crank)
		if err != nil {
			return CSCMeasurement{}, prior, err
		}
	}

	return m, next, nil
}
