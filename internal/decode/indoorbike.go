package decode

import "fmt"

const (
	ibdFlagMoreData             = 0 // instantaneous speed present when CLEAR
	ibdFlagAverageSpeed         = 1
	ibdFlagInstantaneousCadence = 2
	ibdFlagAverageCadence       = 3
	ibdFlagTotalDistance        = 4
	ibdFlagResistanceLevel      = 5
	ibdFlagInstantaneousPower   = 6
)

// IndoorBikeData is a decoded Indoor Bike Data (0x2ad2) frame. Average power, expended energy,
// heart rate, metabolic equivalent and elapsed/remaining time are not decoded.
type IndoorBikeData struct {
	InstantaneousSpeed   *Quantity `json:"instantaneousSpeed,omitempty"`
	AverageSpeed         *Quantity `json:"averageSpeed,omitempty"`
	InstantaneousCadence *Quantity `json:"instantaneousCadence,omitempty"`
	AverageCadence       *Quantity `json:"averageCadence,omitempty"`
	TotalDistance        *Quantity `json:"totalDistance,omitempty"`
	ResistanceLevel      *Quantity `json:"resistanceLevel,omitempty"`
	InstantaneousPower   *Quantity `json:"instantaneousPower,omitempty"`
}

// DecodeIndoorBikeData decodes an Indoor Bike Data frame. Every field is an independent reading.
func DecodeIndoorBikeData(buf []byte) (IndoorBikeData, error) {
	var d IndoorBikeData

	flags16, off, err := ReadUint16(buf, 0)
	if err != nil {
		return d, fmt.Errorf("indoor bike flags: %w", err)
	}
	flags := uint32(flags16)

	readScaled := func(name string, scale float64, unit Unit) (*Quantity, error) {
		var v uint16
		v, off, err = ReadUint16(buf, off)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return Q(float64(v)/scale, unit).Ptr(), nil
	}
	readSigned := func(name string, unit Unit) (*Quantity, error) {
		var v int16
		v, off, err = ReadInt16(buf, off)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return Q(float64(v), unit).Ptr(), nil
	}

	if !BitSet(flags, ibdFlagMoreData) {
		if d.InstantaneousSpeed, err = readScaled("instantaneous speed", 100, UnitKmh); err != nil {
			return IndoorBikeData{}, err
		}
	}
	if BitSet(flags, ibdFlagAverageSpeed) {
		if d.AverageSpeed, err = readScaled("average speed", 100, UnitKmh); err != nil {
			return IndoorBikeData{}, err
		}
	}
	if BitSet(flags, ibdFlagInstantaneousCadence) {
		if d.InstantaneousCadence, err = readScaled("instantaneous cadence", 20, UnitRPM); err != nil {
			return IndoorBikeData{}, err
		}
	}
	if BitSet(flags, ibdFlagAverageCadence) {
		if d.AverageCadence, err = readScaled("average cadence", 20, UnitRPM); err != nil {
			return IndoorBikeData{}, err
		}
	}
	if BitSet(flags, ibdFlagTotalDistance) {
		// 24-bit field, read as a 32-bit word times its third byte. The cursor moves by 3.
		var word uint32
		var mult uint8
		if word, _, err = ReadUint32(buf, off); err != nil {
			return IndoorBikeData{}, fmt.Errorf("total distance: %w", err)
		}
		mult, _, _ = ReadUint8(buf, off+2)
		d.TotalDistance = Q(float64(word)*float64(mult), UnitMeter).Ptr()
		off += 3
	}
	if BitSet(flags, ibdFlagResistanceLevel) {
		if d.ResistanceLevel, err = readSigned("resistance level", UnitPercent); err != nil {
			return IndoorBikeData{}, err
		}
	}
	if BitSet(flags, ibdFlagInstantaneousPower) {
		if d.InstantaneousPower, err = readSigned("instantaneous power", UnitWatt); err != nil {
			return IndoorBikeData{}, err
		}
	}

	return d, nil
}
