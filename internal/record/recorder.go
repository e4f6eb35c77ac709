package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/ble-telemetry/internal/decode"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/session"
	"github.com/muktihari/fit/encoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"
)

var ErrNoRecords = errors.New("nothing recorded")

// Recorder samples session snapshots into FIT record messages and writes them out as a cycling activity.
type Recorder struct {
	interval time.Duration

	mu      sync.Mutex
	start   time.Time
	last    time.Time
	records []*mesgdef.Record

	logger *log.Logger
}

// NewRecorder keeps at most one record per interval; FIT timestamps have one second resolution.
func NewRecorder(interval time.Duration, logger *log.Logger) *Recorder {
	if logger == nil {
		panic("Recorder: logger cannot be nil")
	}
	if interval < time.Second {
		interval = time.Second
	}
	return &Recorder{interval: interval, logger: logger}
}

// Add appends a record for snap unless one was taken less than an interval ago.
// It reports whether a record was appended.
func (r *Recorder) Add(snap session.Snapshot) bool {
	if snap.Updated.IsZero() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.last.IsZero() && snap.Updated.Sub(r.last) < r.interval {
		return false
	}
	if r.start.IsZero() {
		r.start = snap.Updated
	}
	r.last = snap.Updated
	r.records = append(r.records, toRecord(snap))
	return true
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Run feeds every snapshot from updates into the recorder until ctx is done or updates is closed.
func (r *Recorder) Run(ctx context.Context, updates <-chan session.Snapshot) {
	go_func_utils.SafeGo(r.logger, "recorder", func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-updates:
				if !ok {
					return
				}
				r.Add(snap)
			}
		}
	})
}

func toRecord(snap session.Snapshot) *mesgdef.Record {
	rec := mesgdef.NewRecord(nil)
	rec.Timestamp = snap.Updated
	if q := snap.HeartRate; q != nil {
		rec.HeartRate = clampUint8(q.Value)
	}
	if q := snap.Cadence; q != nil {
		rec.Cadence = clampUint8(q.Value)
	}
	if q := snap.Power; q != nil && q.Value >= 0 {
		rec.Power = uint16(math.Min(math.Round(q.Value), math.MaxUint16-1))
	}
	if mps, ok := metersPerSecond(snap.Speed); ok {
		rec.EnhancedSpeed = uint32(math.Round(mps * 1000))
	}
	if m, ok := meters(snap.Distance); ok {
		rec.Distance = uint32(math.Round(m * 100))
	}
	return rec
}

func clampUint8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	return uint8(math.Min(math.Round(v), math.MaxUint8-1))
}

func metersPerSecond(q *decode.Quantity) (float64, bool) {
	if q == nil {
		return 0, false
	}
	switch q.Unit {
	case decode.UnitKmh:
		return q.Value / 3.6, true
	case decode.UnitMph:
		return q.Value * 1609.344 / 3600, true
	default:
		return 0, false
	}
}

func meters(q *decode.Quantity) (float64, bool) {
	if q == nil {
		return 0, false
	}
	switch q.Unit {
	case decode.UnitMeter:
		return q.Value, true
	case decode.UnitKilometer:
		return q.Value * 1000, true
	case decode.UnitMile:
		return q.Value * 1609.344, true
	default:
		return 0, false
	}
}

type summary struct {
	elapsedMs  uint32
	distance   uint32
	avgPower   uint16
	maxPower   uint16
	avgHR      uint8
	maxHR      uint8
	avgCadence uint8
}

func summarize(records []*mesgdef.Record) summary {
	var s summary
	var powerSum, powerN, hrSum, hrN, cadSum, cadN uint64
	for _, rec := range records {
		if rec.Power != math.MaxUint16 {
			powerSum += uint64(rec.Power)
			powerN++
			s.maxPower = max(s.maxPower, rec.Power)
		}
		if rec.HeartRate != math.MaxUint8 {
			hrSum += uint64(rec.HeartRate)
			hrN++
			s.maxHR = max(s.maxHR, rec.HeartRate)
		}
		if rec.Cadence != math.MaxUint8 {
			cadSum += uint64(rec.Cadence)
			cadN++
		}
		if rec.Distance != math.MaxUint32 {
			s.distance = rec.Distance
		}
	}
	if powerN > 0 {
		s.avgPower = uint16(powerSum / powerN)
	}
	if hrN > 0 {
		s.avgHR = uint8(hrSum / hrN)
	}
	if cadN > 0 {
		s.avgCadence = uint8(cadSum / cadN)
	}
	if n := len(records); n > 1 {
		s.elapsedMs = uint32(records[n-1].Timestamp.Sub(records[0].Timestamp).Milliseconds())
	}
	return s
}

// Encode writes everything recorded so far as a FIT activity.
func (r *Recorder) Encode(w io.Writer) error {
	r.mu.Lock()
	records := append([]*mesgdef.Record(nil), r.records...)
	start := r.start
	r.mu.Unlock()

	if len(records) == 0 {
		return ErrNoRecords
	}
	end := records[len(records)-1].Timestamp
	sum := summarize(records)

	fit := proto.FIT{}

	fileID := mesgdef.NewFileId(nil)
	fileID.Type = typedef.FileActivity
	fileID.Manufacturer = typedef.ManufacturerDevelopment
	fileID.Product = 0
	fileID.TimeCreated = start
	fit.Messages = append(fit.Messages, fileID.ToMesg(nil))

	startEvent := mesgdef.NewEvent(nil)
	startEvent.Timestamp = start
	startEvent.Event = typedef.EventTimer
	startEvent.EventType = typedef.EventTypeStart
	fit.Messages = append(fit.Messages, startEvent.ToMesg(nil))

	for _, rec := range records {
		fit.Messages = append(fit.Messages, rec.ToMesg(nil))
	}

	stopEvent := mesgdef.NewEvent(nil)
	stopEvent.Timestamp = end
	stopEvent.Event = typedef.EventTimer
	stopEvent.EventType = typedef.EventTypeStopAll
	fit.Messages = append(fit.Messages, stopEvent.ToMesg(nil))

	lap := mesgdef.NewLap(nil)
	lap.Timestamp = end
	lap.StartTime = start
	lap.TotalElapsedTime = sum.elapsedMs
	lap.TotalTimerTime = sum.elapsedMs
	lap.TotalDistance = sum.distance
	lap.AvgPower = sum.avgPower
	lap.MaxPower = sum.maxPower
	lap.Event = typedef.EventLap
	lap.EventType = typedef.EventTypeStop
	fit.Messages = append(fit.Messages, lap.ToMesg(nil))

	sess := mesgdef.NewSession(nil)
	sess.Timestamp = end
	sess.StartTime = start
	sess.TotalElapsedTime = sum.elapsedMs
	sess.TotalTimerTime = sum.elapsedMs
	sess.TotalDistance = sum.distance
	sess.AvgPower = sum.avgPower
	sess.MaxPower = sum.maxPower
	if sum.avgHR > 0 {
		sess.AvgHeartRate = sum.avgHR
		sess.MaxHeartRate = sum.maxHR
	}
	if sum.avgCadence > 0 {
		sess.AvgCadence = sum.avgCadence
	}
	sess.Sport = typedef.SportCycling
	sess.SubSport = typedef.SubSportIndoorCycling
	sess.Event = typedef.EventSession
	sess.EventType = typedef.EventTypeStop
	sess.Trigger = typedef.SessionTriggerActivityEnd
	fit.Messages = append(fit.Messages, sess.ToMesg(nil))

	if err := encoder.New(w).Encode(&fit); err != nil {
		return fmt.Errorf("encode activity: %w", err)
	}
	return nil
}

// Save writes the activity to path.
func (r *Recorder) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.Encode(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	r.logger.Printf("Recorder: wrote %d records to %s", r.Len(), path)
	return nil
}
