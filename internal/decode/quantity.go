package decode

import "fmt"

// Unit tags every value leaving a decoder.
type Unit string

const (
	UnitBPM         Unit = "bpm"
	UnitJoule       Unit = "J"
	UnitSecond      Unit = "s"
	UnitWatt        Unit = "W"
	UnitPercent     Unit = "%"
	UnitNewtonMeter Unit = "Nm"
	UnitRPM         Unit = "rpm"
	UnitKmh         Unit = "km/h"
	UnitMph         Unit = "mph"
	UnitKilometer   Unit = "km"
	UnitMile        Unit = "mi"
	UnitMeter       Unit = "m"
	UnitInch        Unit = "in"
)

// Quantity is a numeric value paired with its unit.
type Quantity struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

func Q(value float64, unit Unit) Quantity {
	return Quantity{Value: value, Unit: unit}
}

// Ptr returns a pointer to a copy of q, for optional measurement fields.
func (q Quantity) Ptr() *Quantity {
	return &q
}

func (q Quantity) String() string {
	if q.Unit == "" {
		return fmt.Sprintf("%g", q.Value)
	}
	return fmt.Sprintf("%g %s", q.Value, q.Unit)
}
