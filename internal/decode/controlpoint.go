package decode

import "fmt"

// Fitness Machine Control Point (0x2ad9) op codes.
const (
	OpRequestControl      byte = 0x00
	OpReset               byte = 0x01
	OpSetTargetResistance byte = 0x04
	OpSetTargetPower      byte = 0x05
	OpStartOrResume       byte = 0x07
	OpStopOrPause         byte = 0x08
	OpResponseCode        byte = 0x80
)

// ResultCode is the third byte of a control point response.
type ResultCode byte

const (
	ResultSuccess             ResultCode = 0x01
	ResultOpCodeNotSupported  ResultCode = 0x02
	ResultInvalidParameter    ResultCode = 0x03
	ResultOperationFailed     ResultCode = 0x04
	ResultControlNotPermitted ResultCode = 0x05
)

func (r ResultCode) String() string {
	switch r {
	case ResultSuccess:
		return "Success"
	case ResultOpCodeNotSupported:
		return "Op Code Not Supported"
	case ResultInvalidParameter:
		return "Invalid Parameter"
	case ResultOperationFailed:
		return "Operation Failed"
	case ResultControlNotPermitted:
		return "Control Not Permitted"
	default:
		return fmt.Sprintf("Result 0x%02X", byte(r))
	}
}

// OpCodeName returns a display name for a request op code.
func OpCodeName(op byte) string {
	switch op {
	case OpRequestControl:
		return "Request Control"
	case OpReset:
		return "Reset"
	case OpSetTargetResistance:
		return "Set Target Resistance"
	case OpSetTargetPower:
		return "Set Target Power"
	case OpStartOrResume:
		return "Start/Resume"
	case OpStopOrPause:
		return "Stop/Pause"
	default:
		return fmt.Sprintf("OpCode 0x%02X", op)
	}
}

func EncodeRequestControl() []byte {
	return []byte{OpRequestControl}
}

func EncodeStartOrResume() []byte {
	return []byte{OpStartOrResume}
}

// EncodeSetTargetResistance builds [0x04, 0x00, level].
func EncodeSetTargetResistance(level uint8) []byte {
	return []byte{OpSetTargetResistance, 0x00, level}
}

// EncodeSetTargetPower builds [0x05, lo, hi] for a signed watt target.
func EncodeSetTargetPower(watts int16) []byte {
	return []byte{OpSetTargetPower, byte(uint16(watts)), byte(uint16(watts) >> 8)}
}

// ControlPointResponse is a decoded [0x80, request, result, ...] indication.
type ControlPointResponse struct {
	RequestOpCode byte
	Result        ResultCode
	Parameters    []byte
}

// Err returns nil on success and an ErrControlRejected wrap otherwise.
func (r ControlPointResponse) Err() error {
	if r.Result == ResultSuccess {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrControlRejected, OpCodeName(r.RequestOpCode), r.Result)
}

// DecodeControlPointResponse parses a control point indication.
func DecodeControlPointResponse(buf []byte) (ControlPointResponse, error) {
	op, off, err := ReadUint8(buf, 0)
	if err != nil {
		return ControlPointResponse{}, fmt.Errorf("control point response: %w", err)
	}
	if op != OpResponseCode {
		return ControlPointResponse{}, fmt.Errorf("%w: 0x%02X", ErrUnexpectedOpCode, op)
	}
	req, off, err := ReadUint8(buf, off)
	if err != nil {
		return ControlPointResponse{}, fmt.Errorf("control point request op code: %w", err)
	}
	result, off, err := ReadUint8(buf, off)
	if err != nil {
		return ControlPointResponse{}, fmt.Errorf("control point result: %w", err)
	}
	resp := ControlPointResponse{RequestOpCode: req, Result: ResultCode(result)}
	if off < len(buf) {
		resp.Parameters = append([]byte(nil), buf[off:]...)
	}
	return resp, nil
}
