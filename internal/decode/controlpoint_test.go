package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCommands(t *testing.T) {
	assert.Equal(t, []byte{0x00}, EncodeRequestControl())
	assert.Equal(t, []byte{0x07}, EncodeStartOrResume())
	assert.Equal(t, []byte{0x04, 0x00, 25}, EncodeSetTargetResistance(25))
	assert.Equal(t, []byte{0x04, 0x00, 255}, EncodeSetTargetResistance(255))
	assert.Equal(t, []byte{0x05, 0x2C, 0x01}, EncodeSetTargetPower(300))
	assert.Equal(t, []byte{0x05, 0xFF, 0xFF}, EncodeSetTargetPower(-1))
}

func TestDecodeControlPointResponse(t *testing.T) {
	resp, err := DecodeControlPointResponse([]byte{0x80, 0x00, 0x01})
	require.NoError(t, err)
	assert.Equal(t, OpRequestControl, resp.RequestOpCode)
	assert.Equal(t, ResultSuccess, resp.Result)
	assert.Nil(t, resp.Parameters)
	assert.NoError(t, resp.Err())

	resp, err = DecodeControlPointResponse([]byte{0x80, 0x04, 0x03, 0xAA})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA}, resp.Parameters)
	rejected := resp.Err()
	assert.ErrorIs(t, rejected, ErrControlRejected)
	assert.Contains(t, rejected.Error(), "Set Target Resistance")
	assert.Contains(t, rejected.Error(), "Invalid Parameter")

	_, err = DecodeControlPointResponse([]byte{0x04, 0x00, 0x01})
	assert.ErrorIs(t, err, ErrUnexpectedOpCode)

	_, err = DecodeControlPointResponse([]byte{0x80, 0x00})
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestResultCodeString(t *testing.T) {
	assert.Equal(t, "Control Not Permitted", ResultControlNotPermitted.String())
	assert.Equal(t, "Result 0x09", ResultCode(0x09).String())
	assert.Equal(t, "OpCode 0x42", OpCodeName(0x42))
}
