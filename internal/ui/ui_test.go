package ui

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/decode"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/session"
	"github.com/rivo/tview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBuffer(t *testing.T) {
	b := NewLogBuffer()
	lines := make(chan string, 4)
	unregister := b.Listen(lines)
	defer unregister()

	fmt.Fprint(b, "one\ntw")
	assert.Equal(t, []string{"one"}, b.Tail(10))
	fmt.Fprint(b, "o\nthree\n")
	assert.Equal(t, []string{"two", "three"}, b.Tail(2))
	assert.Equal(t, []string{"three"}, b.Tail(1))
	assert.Nil(t, b.Tail(0))

	assert.Equal(t, "one", <-lines)
	assert.Equal(t, "two", <-lines)
	assert.Equal(t, "three", <-lines)
}

func TestLogBuffer_Bounded(t *testing.T) {
	b := NewLogBuffer()
	logger := log.New(b, "", 0)
	for i := 0; i < maxLogLines+50; i++ {
		logger.Printf("line %d", i)
	}
	tail := b.Tail(maxLogLines * 2)
	require.Len(t, tail, maxLogLines)
	assert.Equal(t, "line 50", tail[0])
	assert.Equal(t, fmt.Sprintf("line %d", maxLogLines+49), tail[len(tail)-1])
}

func ptr[T any](v T) *T { return &v }

func TestFormatMeasurement(t *testing.T) {
	tests := []struct {
		name string
		m    session.Measurement
		want string
	}{
		{
			name: "heart rate",
			m: session.Measurement{HeartRate: &decode.HeartRateMeasurement{
				HeartRate:       decode.Q(88, decode.UnitBPM),
				ContactDetected: ptr(true),
				RRIntervals:     []decode.Quantity{decode.Q(0.5, decode.UnitSecond)},
			}},
			want: "88 bpm  contact yes  rr 0.500 s",
		},
		{
			name: "csc crank only",
			m: session.Measurement{CSC: &decode.CSCMeasurement{
				Crank: &decode.CrankRevolutions{Cadence: decode.Q(90, decode.UnitRPM)},
			}},
			want: "cadence 90 rpm",
		},
		{
			name: "cycling power",
			m: session.Measurement{CyclingPower: &decode.CyclingPowerMeasurement{
				InstantaneousPower: decode.Q(250, decode.UnitWatt),
				PedalPowerBalance:  &decode.PedalPowerBalance{Value: decode.Q(50, decode.UnitPercent), Reference: "Left"},
				Wheel: &decode.WheelRevolutions{
					CumulativeRevolutions: 12,
					Speed:                 decode.Q(30, decode.UnitKmh).Ptr(),
					Distance:              decode.Q(0.0251, decode.UnitKilometer).Ptr(),
				},
			}},
			want: "250 W  balance 50 % (Left)  speed 30.0 km/h  dist 0.03 km  wheel 12 revs",
		},
		{
			name: "indoor bike",
			m: session.Measurement{IndoorBike: &decode.IndoorBikeData{
				InstantaneousSpeed: decode.Q(25.5, decode.UnitKmh).Ptr(),
				InstantaneousPower: decode.Q(200, decode.UnitWatt).Ptr(),
			}},
			want: "power 200 W  speed 25.5 km/h",
		},
		{
			name: "location",
			m:    session.Measurement{Location: ptr(decode.Location("Chest"))},
			want: "Chest",
		},
		{
			name: "features",
			m: session.Measurement{Features: decode.Capabilities{
				decode.WheelRevolutionDataSupported: true,
				decode.CrankRevolutionDataSupported: true,
			}},
			want: "crankRevolutionDataSupported, wheelRevolutionDataSupported",
		},
		{
			name: "range",
			m: session.Measurement{Range: &decode.Range{
				Minimum:   decode.Q(0, decode.UnitWatt),
				Maximum:   decode.Q(2000, decode.UnitWatt),
				Increment: decode.Q(1, decode.UnitWatt),
			}},
			want: "0..2000 W step 1",
		},
		{
			name: "battery",
			m:    session.Measurement{Battery: decode.Q(87, decode.UnitPercent).Ptr()},
			want: "87 %",
		},
		{
			name: "device info",
			m:    session.Measurement{DeviceInfo: &session.DeviceInfo{Field: decode.ManufacturerName, Value: "Wahoo"}},
			want: "manufacturerName: Wahoo",
		},
		{
			name: "empty",
			m:    session.Measurement{},
			want: "-",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMeasurement(tt.m))
		})
	}
}

func TestFormatSnapshot(t *testing.T) {
	assert.Contains(t, FormatSnapshot(session.Snapshot{}), "Waiting for data")

	text := FormatSnapshot(session.Snapshot{
		HeartRate: decode.Q(130, decode.UnitBPM).Ptr(),
		Speed:     decode.Q(31.26, decode.UnitKmh).Ptr(),
		Updated:   time.Date(2024, 5, 1, 7, 8, 9, 0, time.UTC),
	})
	assert.Contains(t, text, "[yellow]130[white] bpm")
	assert.Contains(t, text, "[yellow]31.3[white] km/h")
	assert.Contains(t, text, "Updated 07:08:09")
	assert.Contains(t, text, "[gray]--[white]")
}

func TestBoard(t *testing.T) {
	b := NewBoard()
	b.Update(session.Measurement{Device: "b", Channel: session.ChannelBatteryLevel, Battery: decode.Q(50, decode.UnitPercent).Ptr()})
	b.Update(session.Measurement{Device: "a", Channel: session.ChannelHeartRate, HeartRate: &decode.HeartRateMeasurement{HeartRate: decode.Q(70, decode.UnitBPM)}})
	b.Update(session.Measurement{Device: "a", Channel: session.ChannelHeartRate, HeartRate: &decode.HeartRateMeasurement{HeartRate: decode.Q(72, decode.UnitBPM)}})
	b.Update(session.Measurement{Device: "b", Channel: session.ChannelDeviceInformation, DeviceInfo: &session.DeviceInfo{Field: decode.ModelNumber, Value: "X"}})
	b.Update(session.Measurement{Device: "b", Channel: session.ChannelDeviceInformation, DeviceInfo: &session.DeviceInfo{Field: decode.SerialNumber, Value: "1"}})

	rows := b.Rows()
	require.Len(t, rows, 4)
	assert.Equal(t, "a", rows[0].Device)
	assert.Equal(t, "72 bpm", rows[0].Text)
	assert.Equal(t, session.ChannelBatteryLevel, rows[1].Channel)

	b.Forget("b")
	assert.Len(t, b.Rows(), 1)
}

type fakeTrainer struct {
	power      chan int16
	resistance chan uint8
}

func (f *fakeTrainer) SetTargetPower(ctx context.Context, watts int16) error {
	f.power <- watts
	return nil
}

func (f *fakeTrainer) SetTargetResistance(ctx context.Context, level uint8) error {
	f.resistance <- level
	return nil
}

func newTestDashboard(t *testing.T, trainer Trainer) (*Dashboard, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := log.New(&logs, "", 0)
	sess := session.New(session.DefaultConfig(), logger)
	return NewDashboard(tview.NewApplication(), sess, NewLogBuffer(), trainer, logger), &logs
}

func TestNewDashboard_NilLogger(t *testing.T) {
	assert.Panics(t, func() {
		NewDashboard(tview.NewApplication(), session.New(session.DefaultConfig(), log.Default()), nil, nil, nil)
	})
}

func TestDashboard_Keys(t *testing.T) {
	trainer := &fakeTrainer{power: make(chan int16, 4), resistance: make(chan uint8, 4)}
	d, _ := newTestDashboard(t, trainer)

	assert.Nil(t, d.handleKey(tcell.NewEventKey(tcell.KeyRune, '+', tcell.ModNone)))
	assert.Equal(t, int16(160), <-trainer.power)
	assert.Nil(t, d.handleKey(tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone)))
	assert.Equal(t, int16(150), <-trainer.power)

	assert.Nil(t, d.handleKey(tcell.NewEventKey(tcell.KeyRune, '<', tcell.ModNone)))
	assert.Equal(t, uint8(0), <-trainer.resistance, "clamped at zero")
	assert.Nil(t, d.handleKey(tcell.NewEventKey(tcell.KeyRune, '>', tcell.ModNone)))
	assert.Equal(t, uint8(5), <-trainer.resistance)

	passthrough := tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)
	assert.Same(t, passthrough, d.handleKey(passthrough))
}

func TestDashboard_NoTrainer(t *testing.T) {
	d, logs := newTestDashboard(t, nil)
	assert.Nil(t, d.handleKey(tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone)))
	assert.Contains(t, logs.String(), "UI: no trainer to control")
	assert.Contains(t, d.formatControls(), "No trainer control active")
}
