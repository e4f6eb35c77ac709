package decode

import "errors"

var (
	// ErrOutOfBounds is returned when a frame is shorter than the fields its own flags announce.
	ErrOutOfBounds = errors.New("read out of bounds")
	// ErrUnsupportedField is returned when asked to decode a characteristic this package has no layout for.
	ErrUnsupportedField = errors.New("unsupported field")
	// ErrUnexpectedOpCode is returned for control point frames that are not responses.
	ErrUnexpectedOpCode = errors.New("unexpected control point op code")
	// ErrControlRejected is returned when a control point response carries a non-success result.
	ErrControlRejected = errors.New("control point request rejected")
)
