package decode

import (
	"fmt"
	"strings"
)

// Range is a supported setting range advertised by a fitness machine.
type Range struct {
	Minimum   Quantity `json:"minimum"`
	Maximum   Quantity `json:"maximum"`
	Increment Quantity `json:"increment"`
}

func decodeRange(buf []byte, unit Unit, name string) (Range, error) {
	lo, off, err := ReadInt16(buf, 0)
	if err != nil {
		return Range{}, fmt.Errorf("%s minimum: %w", name, err)
	}
	hi, off, err := ReadInt16(buf, off)
	if err != nil {
		return Range{}, fmt.Errorf("%s maximum: %w", name, err)
	}
	inc, _, err := ReadUint16(buf, off)
	if err != nil {
		return Range{}, fmt.Errorf("%s increment: %w", name, err)
	}
	return Range{
		Minimum:   Q(float64(lo), unit),
		Maximum:   Q(float64(hi), unit),
		Increment: Q(float64(inc), unit),
	}, nil
}

// DecodeSupportedPowerRange decodes 0x2ad8.
func DecodeSupportedPowerRange(buf []byte) (Range, error) {
	return decodeRange(buf, UnitWatt, "supported power range")
}

// DecodeSupportedResistanceRange decodes 0x2ad6. Values are passed through unscaled.
func DecodeSupportedResistanceRange(buf []byte) (Range, error) {
	return decodeRange(buf, UnitPercent, "supported resistance level range")
}

// DecodeBatteryLevel decodes 0x2a19.
func DecodeBatteryLevel(buf []byte) (Quantity, error) {
	v, _, err := ReadUint8(buf, 0)
	if err != nil {
		return Quantity{}, fmt.Errorf("battery level: %w", err)
	}
	return Q(float64(v), UnitPercent), nil
}

// DeviceInformationField names one Device Information (0x180a) characteristic.
type DeviceInformationField string

const (
	SystemID                DeviceInformationField = "systemId"
	ModelNumber             DeviceInformationField = "modelNumber"
	SerialNumber            DeviceInformationField = "serialNumber"
	FirmwareRevision        DeviceInformationField = "firmwareRevision"
	HardwareRevision        DeviceInformationField = "hardwareRevision"
	SoftwareRevision        DeviceInformationField = "softwareRevision"
	ManufacturerName        DeviceInformationField = "manufacturerName"
	RegulatoryCertification DeviceInformationField = "ieee11073_20601RegulatoryCertificationDataList"
	PnPID                   DeviceInformationField = "pnpId"
)

var deviceInformationFields = map[uint16]DeviceInformationField{
	0x2a23: SystemID,
	0x2a24: ModelNumber,
	0x2a25: SerialNumber,
	0x2a26: FirmwareRevision,
	0x2a27: HardwareRevision,
	0x2a28: SoftwareRevision,
	0x2a29: ManufacturerName,
	0x2a2a: RegulatoryCertification,
	0x2a50: PnPID,
}

// DeviceInformationFieldFor returns the field name for a 16-bit characteristic UUID.
func DeviceInformationFieldFor(uuid uint16) (DeviceInformationField, bool) {
	f, ok := deviceInformationFields[uuid]
	return f, ok
}

// DecodeDeviceInformation decodes one Device Information characteristic as text with trailing NULs trimmed.
func DecodeDeviceInformation(uuid uint16, buf []byte) (DeviceInformationField, string, error) {
	field, ok := deviceInformationFields[uuid]
	if !ok {
		return "", "", fmt.Errorf("%w: device information characteristic 0x%04x", ErrUnsupportedField, uuid)
	}
	return field, strings.TrimRight(string(buf), "\x00"), nil
}
