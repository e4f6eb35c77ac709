package decode

// BitSet reports whether bit position bit is set in flags.
func BitSet(flags uint32, bit uint) bool {
	return flags&(1<<bit) != 0
}

// Capability names a feature advertised by one bit of a feature bitmask.
type Capability string

// Capabilities holds only the supported capabilities; a missing key means unsupported.
type Capabilities map[Capability]bool

// Has reports whether c is supported.
func (c Capabilities) Has(name Capability) bool {
	return c[name]
}

// BitName binds a bit position to the capability it announces.
type BitName struct {
	Bit  uint
	Name Capability
}

// BitTable is a declarative bit -> capability layout for one feature characteristic.
// Bits not listed are reserved and ignored.
type BitTable []BitName

// Decode returns the capabilities whose bits are set in flags.
func (t BitTable) Decode(flags uint32) Capabilities {
	result := make(Capabilities)
	for _, b := range t {
		if BitSet(flags, b.Bit) {
			result[b.Name] = true
		}
	}
	return result
}
