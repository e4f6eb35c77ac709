package decode

// Location is a human readable sensor placement.
type Location string

const LocationUnknown Location = "Unknown"

var bodySensorLocations = []Location{
	"Other",
	"Chest",
	"Wrist",
	"Finger",
	"Hand",
	"Ear Lobe",
	"Foot",
}

var sensorLocations = []Location{
	"Other",
	"Top of shoe",
	"In shoe",
	"Hip",
	"Front Wheel",
	"Left Crank",
	"Right Crank",
	"Left Pedal",
	"Right Pedal",
	"Front Hub",
	"Rear Dropout",
	"Chainstay",
	"Rear Wheel",
	"Rear Hub",
	"Chest",
	"Spider",
	"Chain Ring",
}

// DecodeBodySensorLocation maps the heart rate Body Sensor Location byte. Never fails.
func DecodeBodySensorLocation(b byte) Location {
	return lookupLocation(bodySensorLocations, b)
}

// DecodeSensorLocation maps the generic Sensor Location byte used by power and CSC sensors. Never fails.
func DecodeSensorLocation(b byte) Location {
	return lookupLocation(sensorLocations, b)
}

func lookupLocation(table []Location, b byte) Location {
	if int(b) < len(table) {
		return table[b]
	}
	return LocationUnknown
}
