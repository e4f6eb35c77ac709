package decode

import (
	"encoding/binary"
	"fmt"
)

// All readers are little-endian. Each returns the value and the offset just past it,
// so the caller threads the cursor explicitly from field to field.

func need(buf []byte, off, n int) error {
	if off < 0 || off+n > len(buf) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrOutOfBounds, n, off, len(buf))
	}
	return nil
}

// ReadUint8 reads an unsigned byte at off.
func ReadUint8(buf []byte, off int) (uint8, int, error) {
	if err := need(buf, off, 1); err != nil {
		return 0, off, err
	}
	return buf[off], off + 1, nil
}

// ReadInt8 reads a signed byte at off.
func ReadInt8(buf []byte, off int) (int8, int, error) {
	v, next, err := ReadUint8(buf, off)
	return int8(v), next, err
}

// ReadUint16 reads a little-endian uint16 at off.
func ReadUint16(buf []byte, off int) (uint16, int, error) {
	if err := need(buf, off, 2); err != nil {
		return 0, off, err
	}
	return binary.LittleEndian.Uint16(buf[off:]), off + 2, nil
}

// ReadInt16 reads a little-endian int16 at off.
func ReadInt16(buf []byte, off int) (int16, int, error) {
	v, next, err := ReadUint16(buf, off)
	return int16(v), next, err
}

// ReadUint32 reads a little-endian uint32 at off.
func ReadUint32(buf []byte, off int) (uint32, int, error) {
	if err := need(buf, off, 4); err != nil {
		return 0, off, err
	}
	return binary.LittleEndian.Uint32(buf[off:]), off + 4, nil
}

// ReadInt32 reads a little-endian int32 at off.
func ReadInt32(buf []byte, off int) (int32, int, error) {
	v, next, err := ReadUint32(buf, off)
	return int32(v), next, err
}

// Skip advances the cursor by n bytes after checking they exist.
func Skip(buf []byte, off, n int) (int, error) {
	if err := need(buf, off, n); err != nil {
		return off, err
	}
	return off + n, nil
}
