package record

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lowaak/smart-trainer/ble-telemetry/internal/decode"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/session"
	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestRecorder(t *testing.T) (*Recorder, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	return NewRecorder(time.Second, log.New(&logs, "", 0)), &logs
}

func snapAt(offset time.Duration, hr, power, cadence, speedKmh, distanceKm float64) session.Snapshot {
	return session.Snapshot{
		HeartRate: decode.Q(hr, decode.UnitBPM).Ptr(),
		Power:     decode.Q(power, decode.UnitWatt).Ptr(),
		Cadence:   decode.Q(cadence, decode.UnitRPM).Ptr(),
		Speed:     decode.Q(speedKmh, decode.UnitKmh).Ptr(),
		Distance:  decode.Q(distanceKm, decode.UnitKilometer).Ptr(),
		Updated:   t0.Add(offset),
	}
}

func TestNewRecorder_NilLogger(t *testing.T) {
	assert.Panics(t, func() { NewRecorder(time.Second, nil) })
}

func TestRecorder_AddSamplesOncePerInterval(t *testing.T) {
	r, _ := newTestRecorder(t)

	assert.False(t, r.Add(session.Snapshot{}), "zero snapshot")
	assert.True(t, r.Add(snapAt(0, 100, 150, 80, 30, 0)))
	assert.False(t, r.Add(snapAt(300*time.Millisecond, 101, 151, 80, 30, 0)))
	assert.False(t, r.Add(snapAt(999*time.Millisecond, 101, 151, 80, 30, 0)))
	assert.True(t, r.Add(snapAt(time.Second, 102, 152, 80, 30, 0.01)))
	assert.Equal(t, 2, r.Len())
}

func TestToRecord(t *testing.T) {
	tests := []struct {
		name     string
		snap     session.Snapshot
		hr       uint8
		power    uint16
		speed    uint32
		distance uint32
	}{
		{
			name:     "metric",
			snap:     snapAt(0, 140, 200, 90, 36, 1.5),
			hr:       140,
			power:    200,
			speed:    10000,
			distance: 150000,
		},
		{
			name: "imperial",
			snap: session.Snapshot{
				Speed:    decode.Q(10, decode.UnitMph).Ptr(),
				Distance: decode.Q(1, decode.UnitMile).Ptr(),
				Updated:  t0,
			},
			hr:       0xFF,
			power:    0xFFFF,
			speed:    4470,
			distance: 160934,
		},
		{
			name: "meters from indoor bike",
			snap: session.Snapshot{
				Distance: decode.Q(420, decode.UnitMeter).Ptr(),
				Power:    decode.Q(-5, decode.UnitWatt).Ptr(),
				Updated:  t0,
			},
			hr:       0xFF,
			power:    0xFFFF,
			speed:    0xFFFFFFFF,
			distance: 42000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := toRecord(tt.snap)
			assert.Equal(t, tt.snap.Updated, rec.Timestamp)
			assert.Equal(t, tt.hr, rec.HeartRate)
			assert.Equal(t, tt.power, rec.Power)
			assert.Equal(t, tt.speed, rec.EnhancedSpeed)
			assert.Equal(t, tt.distance, rec.Distance)
		})
	}
}

func TestSummarize(t *testing.T) {
	records := []*mesgdef.Record{
		toRecord(snapAt(0, 100, 100, 80, 30, 0)),
		toRecord(snapAt(time.Second, 120, 300, 90, 30, 0.01)),
		toRecord(session.Snapshot{Updated: t0.Add(2 * time.Second)}),
	}
	s := summarize(records)
	assert.Equal(t, uint16(200), s.avgPower)
	assert.Equal(t, uint16(300), s.maxPower)
	assert.Equal(t, uint8(110), s.avgHR)
	assert.Equal(t, uint8(120), s.maxHR)
	assert.Equal(t, uint8(85), s.avgCadence)
	assert.Equal(t, uint32(1000), s.distance)
	assert.Equal(t, uint32(2000), s.elapsedMs)
}

func TestRecorder_EncodeEmpty(t *testing.T) {
	r, _ := newTestRecorder(t)
	assert.ErrorIs(t, r.Encode(&bytes.Buffer{}), ErrNoRecords)
}

func TestRecorder_EncodeDecodes(t *testing.T) {
	r, _ := newTestRecorder(t)
	for i := 0; i < 5; i++ {
		require.True(t, r.Add(snapAt(time.Duration(i)*time.Second, 130, 200, 85, 30, float64(i)*0.01)))
	}

	var buf bytes.Buffer
	require.NoError(t, r.Encode(&buf))

	fit, err := decoder.New(&buf).Decode()
	require.NoError(t, err)

	counts := map[typedef.MesgNum]int{}
	var lastRecord *mesgdef.Record
	for i := range fit.Messages {
		mesg := &fit.Messages[i]
		counts[mesg.Num]++
		if mesg.Num == typedef.MesgNumRecord {
			lastRecord = mesgdef.NewRecord(mesg)
		}
	}
	assert.Equal(t, 1, counts[typedef.MesgNumFileId])
	assert.Equal(t, 5, counts[typedef.MesgNumRecord])
	assert.Equal(t, 2, counts[typedef.MesgNumEvent])
	assert.Equal(t, 1, counts[typedef.MesgNumLap])
	assert.Equal(t, 1, counts[typedef.MesgNumSession])

	require.NotNil(t, lastRecord)
	assert.Equal(t, uint8(130), lastRecord.HeartRate)
	assert.Equal(t, uint16(200), lastRecord.Power)
	assert.Equal(t, uint32(4000), lastRecord.Distance)
}

func TestRecorder_Save(t *testing.T) {
	r, logs := newTestRecorder(t)
	r.Add(snapAt(0, 130, 200, 85, 30, 0))

	path := filepath.Join(t.TempDir(), "ride.fit")
	require.NoError(t, r.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
	assert.Contains(t, logs.String(), "Recorder: wrote 1 records to")
}

func TestRecorder_SaveNothingLeavesNoFile(t *testing.T) {
	r, _ := newTestRecorder(t)
	path := filepath.Join(t.TempDir(), "ride.fit")

	assert.ErrorIs(t, r.Save(path), ErrNoRecords)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRecorder_Run(t *testing.T) {
	r, _ := newTestRecorder(t)
	updates := make(chan session.Snapshot)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r.Run(ctx, updates)
	updates <- snapAt(0, 100, 100, 80, 30, 0)
	updates <- snapAt(2*time.Second, 100, 100, 80, 30, 0)
	close(updates)

	assert.Eventually(t, func() bool { return r.Len() == 2 }, time.Second, 5*time.Millisecond)
}
