package session

import (
	"time"

	"github.com/lowaak/smart-trainer/ble-telemetry/internal/decode"
)

// Snapshot is the latest value of each headline metric regardless of which channel supplied it.
// Values are shared between snapshots and must not be mutated.
type Snapshot struct {
	HeartRate *decode.Quantity `json:"heartRate,omitempty"`
	Power     *decode.Quantity `json:"power,omitempty"`
	Cadence   *decode.Quantity `json:"cadence,omitempty"`
	Speed     *decode.Quantity `json:"speed,omitempty"`
	Distance  *decode.Quantity `json:"distance,omitempty"`
	Battery   *decode.Quantity `json:"battery,omitempty"`
	Updated   time.Time        `json:"updated"`
}

// Snapshot returns a copy of the current rolled-up values.
func (s *Session) Snapshot() Snapshot {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	return s.snapshot
}

func (s *Session) fold(m Measurement) Snapshot {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	snap := &s.snapshot
	switch {
	case m.HeartRate != nil:
		snap.HeartRate = m.HeartRate.HeartRate.Ptr()
	case m.CSC != nil:
		foldWheel(snap, m.CSC.Wheel)
		foldCrank(snap, m.CSC.Crank)
	case m.CyclingPower != nil:
		snap.Power = m.CyclingPower.InstantaneousPower.Ptr()
		foldWheel(snap, m.CyclingPower.Wheel)
		foldCrank(snap, m.CyclingPower.Crank)
	case m.IndoorBike != nil:
		ibd := m.IndoorBike
		if ibd.InstantaneousSpeed != nil {
			snap.Speed = ibd.InstantaneousSpeed
		}
		if ibd.InstantaneousCadence != nil {
			snap.Cadence = ibd.InstantaneousCadence
		}
		if ibd.InstantaneousPower != nil {
			snap.Power = ibd.InstantaneousPower
		}
		if ibd.TotalDistance != nil {
			snap.Distance = ibd.TotalDistance
		}
	case m.Battery != nil:
		snap.Battery = m.Battery
	default:
		return *snap
	}
	snap.Updated = m.Time
	return *snap
}

func foldWheel(snap *Snapshot, wheel *decode.WheelRevolutions) {
	if wheel == nil {
		return
	}
	if wheel.Speed != nil {
		snap.Speed = wheel.Speed
	}
	if wheel.Distance != nil {
		snap.Distance = wheel.Distance
	}
}

func foldCrank(snap *Snapshot, crank *decode.CrankRevolutions) {
	if crank != nil {
		snap.Cadence = crank.Cadence.Ptr()
	}
}
