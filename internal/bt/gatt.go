package bt

import (
	"fmt"
	"strconv"
	"strings"
)

const baseUUIDSuffix = "-0000-1000-8000-00805f9b34fb"

// GATT services
const (
	ServiceHeartRate         = "0000180d-0000-1000-8000-00805f9b34fb"
	ServiceBattery           = "0000180f-0000-1000-8000-00805f9b34fb"
	ServiceDeviceInformation = "0000180a-0000-1000-8000-00805f9b34fb"
	ServiceCyclingSpeedCad   = "00001816-0000-1000-8000-00805f9b34fb"
	ServiceCyclingPower      = "00001818-0000-1000-8000-00805f9b34fb"
	ServiceFitnessMachine    = "00001826-0000-1000-8000-00805f9b34fb"
)

// GATT characteristics
const (
	CharHeartRateMeasurement       = "00002a37-0000-1000-8000-00805f9b34fb"
	CharBodySensorLocation         = "00002a38-0000-1000-8000-00805f9b34fb"
	CharBatteryLevel               = "00002a19-0000-1000-8000-00805f9b34fb"
	CharCSCMeasurement             = "00002a5b-0000-1000-8000-00805f9b34fb"
	CharCSCFeature                 = "00002a5c-0000-1000-8000-00805f9b34fb"
	CharSensorLocation             = "00002a5d-0000-1000-8000-00805f9b34fb"
	CharCyclingPowerMeasurement    = "00002a63-0000-1000-8000-00805f9b34fb"
	CharCyclingPowerFeature        = "00002a65-0000-1000-8000-00805f9b34fb"
	CharFitnessMachineFeature      = "00002acc-0000-1000-8000-00805f9b34fb"
	CharIndoorBikeData             = "00002ad2-0000-1000-8000-00805f9b34fb"
	CharSupportedResistanceRange   = "00002ad6-0000-1000-8000-00805f9b34fb"
	CharSupportedPowerRange        = "00002ad8-0000-1000-8000-00805f9b34fb"
	CharFitnessMachineControlPoint = "00002ad9-0000-1000-8000-00805f9b34fb"
)

// UUID16 expands a SIG assigned number into its 128-bit string form.
func UUID16(short uint16) string {
	return fmt.Sprintf("%08x%s", uint32(short), baseUUIDSuffix)
}

// ShortUUID extracts the 16-bit assigned number from a base UUID string.
func ShortUUID(uuid string) (uint16, bool) {
	uuid = strings.ToLower(uuid)
	if len(uuid) != 36 || !strings.HasSuffix(uuid, baseUUIDSuffix) || !strings.HasPrefix(uuid, "0000") {
		return 0, false
	}
	v, err := strconv.ParseUint(uuid[4:8], 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}
