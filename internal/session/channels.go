package session

import "github.com/lowaak/smart-trainer/ble-telemetry/internal/bt"

// Channel identifies the characteristic a frame came from.
type Channel string

const (
	ChannelHeartRate          Channel = "heart_rate"
	ChannelCSC                Channel = "csc"
	ChannelCyclingPower       Channel = "cycling_power"
	ChannelIndoorBikeData     Channel = "indoor_bike_data"
	ChannelBodySensorLocation Channel = "body_sensor_location"
	ChannelSensorLocation     Channel = "sensor_location"
	ChannelPowerFeature       Channel = "power_feature"
	ChannelCSCFeature         Channel = "csc_feature"
	ChannelMachineFeature     Channel = "fitness_machine_feature"
	ChannelPowerRange         Channel = "supported_power_range"
	ChannelResistanceRange    Channel = "supported_resistance_range"
	ChannelBatteryLevel       Channel = "battery_level"
	ChannelDeviceInformation  Channel = "device_information"
)

type Mode int

const (
	ModeNotify Mode = iota
	ModeRead
)

// ChannelSpec binds a channel to its GATT location.
type ChannelSpec struct {
	Channel        Channel
	DisplayName    string
	Service        string
	Characteristic string
	Mode           Mode
}

var deviceInformationChars = []uint16{0x2a29, 0x2a24, 0x2a25, 0x2a27, 0x2a26, 0x2a28, 0x2a23, 0x2a2a, 0x2a50}

// Channels lists every characteristic a session knows how to decode. Sensor Location appears
// under both the cycling power and the CSC service.
var Channels = buildChannels()

func buildChannels() []ChannelSpec {
	specs := []ChannelSpec{
		{ChannelHeartRate, "Heart Rate", bt.ServiceHeartRate, bt.CharHeartRateMeasurement, ModeNotify},
		{ChannelCSC, "Speed & Cadence", bt.ServiceCyclingSpeedCad, bt.CharCSCMeasurement, ModeNotify},
		{ChannelCyclingPower, "Cycling Power", bt.ServiceCyclingPower, bt.CharCyclingPowerMeasurement, ModeNotify},
		{ChannelIndoorBikeData, "Indoor Bike Data", bt.ServiceFitnessMachine, bt.CharIndoorBikeData, ModeNotify},
		{ChannelBodySensorLocation, "Body Sensor Location", bt.ServiceHeartRate, bt.CharBodySensorLocation, ModeRead},
		{ChannelSensorLocation, "Sensor Location", bt.ServiceCyclingPower, bt.CharSensorLocation, ModeRead},
		{ChannelSensorLocation, "Sensor Location", bt.ServiceCyclingSpeedCad, bt.CharSensorLocation, ModeRead},
		{ChannelPowerFeature, "Cycling Power Feature", bt.ServiceCyclingPower, bt.CharCyclingPowerFeature, ModeRead},
		{ChannelCSCFeature, "CSC Feature", bt.ServiceCyclingSpeedCad, bt.CharCSCFeature, ModeRead},
		{ChannelMachineFeature, "Fitness Machine Feature", bt.ServiceFitnessMachine, bt.CharFitnessMachineFeature, ModeRead},
		{ChannelPowerRange, "Supported Power Range", bt.ServiceFitnessMachine, bt.CharSupportedPowerRange, ModeRead},
		{ChannelResistanceRange, "Supported Resistance Range", bt.ServiceFitnessMachine, bt.CharSupportedResistanceRange, ModeRead},
		{ChannelBatteryLevel, "Battery Level", bt.ServiceBattery, bt.CharBatteryLevel, ModeRead},
	}
	for _, c := range deviceInformationChars {
		specs = append(specs, ChannelSpec{ChannelDeviceInformation, "Device Information", bt.ServiceDeviceInformation, bt.UUID16(c), ModeRead})
	}
	return specs
}

// NotifyChannels returns the specs delivered by notification.
func NotifyChannels() []ChannelSpec {
	var result []ChannelSpec
	for _, s := range Channels {
		if s.Mode == ModeNotify {
			result = append(result, s)
		}
	}
	return result
}
