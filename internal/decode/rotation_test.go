package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(revs uint32, eventTime uint16, rpm float64) RotationChannel {
	return RotationChannel{
		CumulativeRevolutions: revs,
		LastEventTime:         eventTime,
		RPM:                   Q(rpm, UnitRPM),
		Initialized:           true,
	}
}

func TestTrackRotation_FirstObservationSeeds(t *testing.T) {
	got := TrackRotation(RotationChannel{}, 100, 60000, CSCWheelChannel)

	assert.True(t, got.Initialized)
	assert.Equal(t, uint32(100), got.CumulativeRevolutions)
	assert.Equal(t, uint16(60000), got.LastEventTime)
	assert.Equal(t, Q(0, UnitRPM), got.RPM)
	assert.Equal(t, uint8(0), got.StaleCount)
}

func TestTrackRotation_EventTimeWrap(t *testing.T) {
	got := TrackRotation(seeded(100, 60000, 0), 105, 500, CSCWheelChannel)

	// (500 + 65536) - 60000 = 6036 ticks
	assert.InDelta(t, 1024.0*5/6036*60, got.RPM.Value, 1e-9)
	assert.Equal(t, UnitRPM, got.RPM.Unit)
	assert.Equal(t, uint8(0), got.StaleCount)
}

func TestTrackRotation_PriorWithoutInitialized(t *testing.T) {
	prior := RotationChannel{CumulativeRevolutions: 100, LastEventTime: 60000}

	got := TrackRotation(prior, 105, 500, CSCWheelChannel)

	assert.True(t, got.Initialized)
	assert.InDelta(t, 1024.0*5/6036*60, got.RPM.Value, 1e-9)
	assert.Equal(t, uint8(0), got.StaleCount)

	// a restored prior with no movement still counts towards staleness
	stale := TrackRotation(RotationChannel{CumulativeRevolutions: 7, RPM: Q(40, UnitRPM)}, 7, 0, CSCWheelChannel)
	assert.Equal(t, uint8(1), stale.StaleCount)
	assert.Equal(t, Q(40, UnitRPM), stale.RPM)
}

func TestTrackRotation_RevolutionWrap(t *testing.T) {
	tests := []struct {
		name  string
		cfg   ChannelConfig
		prior uint32
		curr  uint32
		delta float64
	}{
		{"crank 16 bit", CSCCrankChannel, 0xFFFF, 2, 3},
		{"wheel 32 bit", CSCWheelChannel, 0xFFFFFFFF, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrackRotation(seeded(tt.prior, 0, 0), tt.curr, 1024, tt.cfg)
			assert.InDelta(t, tt.delta*60, got.RPM.Value, 1e-9)
			assert.Equal(t, tt.curr, got.CumulativeRevolutions)
		})
	}
}

func TestTrackRotation_Staleness(t *testing.T) {
	cfg := CSCWheelChannel
	state := seeded(10, 1000, 0)

	state = TrackRotation(state, 11, 2024, cfg)
	require.InDelta(t, 60.0, state.RPM.Value, 1e-9)

	// No new revolutions: RPM is carried until StaleCount passes StaleAfter.
	for i := 1; i <= int(cfg.StaleAfter); i++ {
		state = TrackRotation(state, 11, uint16(2024+i*1024), cfg)
		assert.Equal(t, uint8(i), state.StaleCount)
		assert.InDelta(t, 60.0, state.RPM.Value, 1e-9, "frame %d", i)
	}

	state = TrackRotation(state, 11, 9000, cfg)
	assert.Equal(t, cfg.StaleAfter+1, state.StaleCount)
	assert.Equal(t, 0.0, state.RPM.Value)

	state = TrackRotation(state, 11, 9500, cfg)
	assert.Equal(t, 0.0, state.RPM.Value)

	// Movement resets the counter.
	state = TrackRotation(state, 12, 9500+512, cfg)
	assert.Equal(t, uint8(0), state.StaleCount)
	assert.InDelta(t, 120.0, state.RPM.Value, 1e-9)
}

func TestTrackRotation_ZeroTimeDeltaIsNotAnUpdate(t *testing.T) {
	got := TrackRotation(seeded(10, 500, 42), 12, 500, CSCCrankChannel)
	assert.Equal(t, 42.0, got.RPM.Value)
	assert.Equal(t, uint8(1), got.StaleCount)
}

func TestTrackRotation_StaleCountSaturates(t *testing.T) {
	prior := seeded(10, 500, 0)
	prior.StaleCount = 0xFF
	got := TrackRotation(prior, 10, 600, PowerCrankChannel)
	assert.Equal(t, uint8(0xFF), got.StaleCount)
	assert.Equal(t, 0.0, got.RPM.Value)
}

func TestTrackRotation_PowerCrankToleratesTenFrames(t *testing.T) {
	state := seeded(5, 0, 90)
	for i := 1; i <= 10; i++ {
		state = TrackRotation(state, 5, uint16(i*100), PowerCrankChannel)
		assert.Equal(t, 90.0, state.RPM.Value)
	}
	state = TrackRotation(state, 5, 1100, PowerCrankChannel)
	assert.Equal(t, 0.0, state.RPM.Value)
}

func TestWheelSpeedDistance(t *testing.T) {
	wheel := seeded(1000, 0, 30)

	speed, distance := WheelSpeedDistance(wheel, Q(2.125, UnitMeter))
	require.NotNil(t, speed)
	require.NotNil(t, distance)
	assert.InDelta(t, 3.825, speed.Value, 1e-9)
	assert.Equal(t, UnitKmh, speed.Unit)
	assert.InDelta(t, 2.125, distance.Value, 1e-9)
	assert.Equal(t, UnitKilometer, distance.Unit)

	wheel.CumulativeRevolutions = 63360
	speed, distance = WheelSpeedDistance(wheel, Q(84, UnitInch))
	require.NotNil(t, speed)
	require.NotNil(t, distance)
	assert.InDelta(t, 30*84*3.6/63360, speed.Value, 1e-9)
	assert.Equal(t, UnitMph, speed.Unit)
	assert.InDelta(t, 84.0, distance.Value, 1e-9)
	assert.Equal(t, UnitMile, distance.Unit)

	speed, distance = WheelSpeedDistance(wheel, Q(7, "ft"))
	assert.Nil(t, speed)
	assert.Nil(t, distance)
}
