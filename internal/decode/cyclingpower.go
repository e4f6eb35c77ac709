package decode

import "fmt"

const (
	cpFlagPedalPowerBalance          = 0
	cpFlagPedalPowerBalanceReference = 1
	cpFlagAccumulatedTorque          = 2
	cpFlagAccumulatedTorqueSource    = 3
	cpFlagWheelRevolution            = 4
	cpFlagCrankRevolution            = 5
)

// trailingField is a cycling power region that is validated and stepped over but not decoded.
type trailingField struct {
	bit  uint
	size int
	name string
}

var cpTrailingFields = []trailingField{
	{6, 4, "extremeForceMagnitudes"},
	{7, 4, "extremeTorqueMagnitudes"},
	{8, 3, "extremeAngles"},
	{9, 2, "topDeadSpotAngle"},
	{10, 2, "bottomDeadSpotAngle"},
	{11, 2, "accumulatedEnergy"},
}

type PedalPowerBalance struct {
	Value     Quantity `json:"value"`
	Reference string   `json:"reference"` // Left or Unknown
}

type AccumulatedTorque struct {
	Value  Quantity `json:"value"`
	Source string   `json:"source"` // Wheel or Crank
}

// CyclingPowerMeasurement is a decoded Cycling Power Measurement (0x2a63) frame.
type CyclingPowerMeasurement struct {
	InstantaneousPower Quantity           `json:"instantaneousPower"`
	PedalPowerBalance  *PedalPowerBalance `json:"pedalPowerBalance,omitempty"`
	AccumulatedTorque  *AccumulatedTorque `json:"accumulatedTorque,omitempty"`
	Wheel              *WheelRevolutions  `json:"wheel,omitempty"`
	Crank              *CrankRevolutions  `json:"crank,omitempty"`
	// Skipped lists the trailing regions present in the frame that were stepped over.
	Skipped []string `json:"skipped,omitempty"`
}

// CyclingPowerDecoder decodes cycling power measurements. It holds configuration only;
// rotation state is passed in and returned on every call.
type CyclingPowerDecoder struct {
	Wheel ChannelConfig
	Crank ChannelConfig
}

func NewCyclingPowerDecoder() CyclingPowerDecoder {
	return CyclingPowerDecoder{Wheel: PowerWheelChannel, Crank: PowerCrankChannel}
}

// Decode parses buf against prior and returns the measurement and the next rotation state.
// On error the returned state is prior.
func (d CyclingPowerDecoder) Decode(buf []byte, prior RotationState, circumference Quantity) (CyclingPowerMeasurement, RotationState, error) {
	var m CyclingPowerMeasurement
	next := prior

	flags16, off, err := ReadUint16(buf, 0)
	if err != nil {
		return CyclingPowerMeasurement{}, prior, fmt.Errorf("cycling power flags: %w", err)
	}
	flags := uint32(flags16)

	power, off, err := ReadInt16(buf, off)
	if err != nil {
		return CyclingPowerMeasurement{}, prior, fmt.Errorf("instantaneous power: %w", err)
	}
	m.InstantaneousPower = Q(float64(power), UnitWatt)

	if BitSet(flags, cpFlagPedalPowerBalance) {
		var v uint8
		v, off, err = ReadUint8(buf, off)
		if err != nil {
			return CyclingPowerMeasurement{}, prior, fmt.Errorf("pedal power balance: %w", err)
		}
		ref := "Unknown"
		if BitSet(flags, cpFlagPedalPowerBalanceReference) {
			ref = "Left"
		}
		m.PedalPowerBalance = &PedalPowerBalance{Value: Q(float64(v), UnitPercent), Reference: ref}
	}

	if BitSet(flags, cpFlagAccumulatedTorque) {
		var v uint16
		v, off, err = ReadUint16(buf, off)
		if err != nil {
			return CyclingPowerMeasurement{}, prior, fmt.Errorf("accumulated torque: %w", err)
		}
		source := "Crank"
		if BitSet(flags, cpFlagAccumulatedTorqueSource) {
			source = "Wheel"
		}
		m.AccumulatedTorque = &AccumulatedTorque{Value: Q(float64(v)*1e-5, UnitNewtonMeter), Source: source}
	}

	if BitSet(flags, cpFlagWheelRevolution) {
		m.Wheel, next.Wheel, off, err = readWheelBlock(buf, off, prior.Wheel, d.Wheel, circumference)
		if err != nil {
			return CyclingPowerMeasurement{}, prior, err
		}
	}

	if BitSet(flags, cpFlagCrankRevolution) {
		m.Crank, next.Crank, off, err = readCrankBlock(buf, off, prior.Crank, d.Crank)
		if err != nil {
			return CyclingPowerMeasurement{}, prior, err
		}
	}

	for _, t := range cpTrailingFields {
		if !BitSet(flags, t.bit) {
			continue
		}
		off, err = Skip(buf, off, t.size)
		if err != nil {
			return CyclingPowerMeasurement{}, prior, fmt.Errorf("%s: %w", t.name, err)
		}
		m.Skipped = append(m.Skipped, t.name)
	}

	return m, next, nil
}
