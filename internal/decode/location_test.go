package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeSensorLocation(t *testing.T) {
	tests := []struct {
		in   byte
		want Location
	}{
		{0, "Other"},
		{4, "Front Wheel"},
		{5, "Left Crank"},
		{16, "Chain Ring"},
		{17, LocationUnknown},
		{99, LocationUnknown},
		{255, LocationUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DecodeSensorLocation(tt.in), "byte %d", tt.in)
	}
}

func TestDecodeBodySensorLocation(t *testing.T) {
	assert.Equal(t, Location("Chest"), DecodeBodySensorLocation(1))
	assert.Equal(t, Location("Ear Lobe"), DecodeBodySensorLocation(5))
	assert.Equal(t, Location("Foot"), DecodeBodySensorLocation(6))
	assert.Equal(t, LocationUnknown, DecodeBodySensorLocation(7))
}
