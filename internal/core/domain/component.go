package domain

// Device is a Home Assistant device node: the bridge itself or one inverter
// attached to the cloud account.
type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

// GenericSensor is the entity description announced through MQTT discovery.
type GenericSensor struct {
	Device            Device
	Id                string // object id, also the state topic segment
	SensorType        string
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string // measurement, total_increasing
	DeviceClass       string // power, energy, connectivity
	EntityCategory    string // diagnostic or empty
	Precision         *uint
	EnabledByDefault  *bool
	Icon              string
}
