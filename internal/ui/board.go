package ui

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lowaak/smart-trainer/ble-telemetry/internal/decode"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/session"
)

// Row is the latest value of one device channel as shown on the dashboard.
type Row struct {
	Device  string
	Channel session.Channel
	Text    string
}

// Board collects the latest formatted measurement per device and channel.
type Board struct {
	mu   sync.RWMutex
	rows map[string]Row
}

func NewBoard() *Board {
	return &Board{rows: make(map[string]Row)}
}

func (b *Board) Update(m session.Measurement) {
	key := m.Device + "/" + string(m.Channel)
	if m.DeviceInfo != nil {
		// one row per device information field
		key += "/" + string(m.DeviceInfo.Field)
	}
	row := Row{Device: m.Device, Channel: m.Channel, Text: FormatMeasurement(m)}

	b.mu.Lock()
	b.rows[key] = row
	b.mu.Unlock()
}

// Forget drops every row of device.
func (b *Board) Forget(device string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, r := range b.rows {
		if r.Device == device {
			delete(b.rows, k)
		}
	}
}

// Rows returns the rows sorted by device, then channel.
func (b *Board) Rows() []Row {
	b.mu.RLock()
	keys := make([]string, 0, len(b.rows))
	for k := range b.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	result := make([]Row, 0, len(keys))
	for _, k := range keys {
		result = append(result, b.rows[k])
	}
	b.mu.RUnlock()
	return result
}

func formatValue(q decode.Quantity, precision int) string {
	return fmt.Sprintf("%.*f %s", precision, q.Value, q.Unit)
}

func formatOptional(label string, q *decode.Quantity, precision int) string {
	if q == nil {
		return ""
	}
	return label + " " + formatValue(*q, precision)
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "  ")
}

func formatWheel(w *decode.WheelRevolutions) string {
	if w == nil {
		return ""
	}
	return joinNonEmpty(
		formatOptional("speed", w.Speed, 1),
		formatOptional("dist", w.Distance, 2),
		fmt.Sprintf("wheel %d revs", w.CumulativeRevolutions),
	)
}

func formatCrank(c *decode.CrankRevolutions) string {
	if c == nil {
		return ""
	}
	return "cadence " + formatValue(c.Cadence, 0)
}

func formatCapabilities(c decode.Capabilities) string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, string(name))
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

// FormatMeasurement renders the payload of m on one line.
func FormatMeasurement(m session.Measurement) string {
	switch {
	case m.HeartRate != nil:
		hr := m.HeartRate
		contact := ""
		if hr.ContactDetected != nil {
			contact = "contact no"
			if *hr.ContactDetected {
				contact = "contact yes"
			}
		}
		rr := ""
		if n := len(hr.RRIntervals); n > 0 {
			rr = "rr " + formatValue(hr.RRIntervals[n-1], 3)
		}
		return joinNonEmpty(formatValue(hr.HeartRate, 0), contact, formatOptional("energy", hr.EnergyExpended, 0), rr)
	case m.CSC != nil:
		return joinNonEmpty(formatWheel(m.CSC.Wheel), formatCrank(m.CSC.Crank))
	case m.CyclingPower != nil:
		cp := m.CyclingPower
		balance := ""
		if cp.PedalPowerBalance != nil {
			balance = fmt.Sprintf("balance %s (%s)", formatValue(cp.PedalPowerBalance.Value, 0), cp.PedalPowerBalance.Reference)
		}
		torque := ""
		if cp.AccumulatedTorque != nil {
			torque = fmt.Sprintf("torque %s (%s)", formatValue(cp.AccumulatedTorque.Value, 3), cp.AccumulatedTorque.Source)
		}
		return joinNonEmpty(formatValue(cp.InstantaneousPower, 0), balance, torque, formatWheel(cp.Wheel), formatCrank(cp.Crank))
	case m.IndoorBike != nil:
		d := m.IndoorBike
		return joinNonEmpty(
			formatOptional("power", d.InstantaneousPower, 0),
			formatOptional("speed", d.InstantaneousSpeed, 1),
			formatOptional("avg speed", d.AverageSpeed, 1),
			formatOptional("cadence", d.InstantaneousCadence, 0),
			formatOptional("avg cadence", d.AverageCadence, 0),
			formatOptional("dist", d.TotalDistance, 0),
			formatOptional("resistance", d.ResistanceLevel, 0),
		)
	case m.Location != nil:
		return string(*m.Location)
	case m.Features != nil:
		return formatCapabilities(m.Features)
	case m.MachineFeatures != nil:
		return "machine: " + formatCapabilities(m.MachineFeatures.Machine) +
			"; targets: " + formatCapabilities(m.MachineFeatures.TargetSettings)
	case m.Range != nil:
		r := m.Range
		return fmt.Sprintf("%g..%g %s step %g", r.Minimum.Value, r.Maximum.Value, r.Minimum.Unit, r.Increment.Value)
	case m.Battery != nil:
		return formatValue(*m.Battery, 0)
	case m.DeviceInfo != nil:
		return fmt.Sprintf("%s: %s", m.DeviceInfo.Field, m.DeviceInfo.Value)
	default:
		return "-"
	}
}

// FormatSnapshot renders the headline metrics panel.
func FormatSnapshot(s session.Snapshot) string {
	if s.Updated.IsZero() {
		return "\n\n  [yellow]Waiting for data...[white]\n\n  Sensors appear here once they send their first frame."
	}
	line := func(color, label string, q *decode.Quantity, precision int) string {
		if q == nil {
			return fmt.Sprintf("  [%s]%-10s[white] [gray]--[white]\n\n", color, label)
		}
		return fmt.Sprintf("  [%s]%-10s[white] [yellow]%.*f[white] %s\n\n", color, label, precision, q.Value, q.Unit)
	}
	text := "\n"
	text += line("red", "Heart Rate", s.HeartRate, 0)
	text += line("blue", "Power", s.Power, 0)
	text += line("cyan", "Cadence", s.Cadence, 0)
	text += line("green", "Speed", s.Speed, 1)
	text += line("purple", "Distance", s.Distance, 2)
	text += line("white", "Battery", s.Battery, 0)
	text += fmt.Sprintf("  [gray]Updated %s[white]\n", s.Updated.Format("15:04:05"))
	return text
}
