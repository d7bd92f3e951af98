package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/berfenger/ucan2mqtt/pkg/ucancloud"
	"github.com/carlmjohnson/versioninfo"
)

const (
	INTEGRATION_DOMAIN           = "ucan_assistant"
	MANUFACTURER                 = "UCAN"
	SENSOR_ID_BRIDGE_STATE       = "bridge"
	STATE_CLASS_MEASUREMENT      = "measurement"
	STATE_CLASS_TOTAL_INCREASING = "total_increasing"
	DEVICE_CLASS_ENERGY          = "energy"
	DEVICE_CLASS_POWER           = "power"
	DEVICE_CLASS_CONNECTIVITY    = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC      = "diagnostic"
	SENSOR_TYPE_SENSOR           = "sensor"
	SENSOR_TYPE_BINARY           = "binary_sensor"
	UNIT_WATT                    = "W"
	UNIT_KILOWATT_HOUR           = "kWh"
)

// SensorField describes how a status payload field is exposed as a sensor.
type SensorField struct {
	Name        string
	DeviceClass string
	Unit        string
	StateClass  string
	Decimals    uint
	Transform   func(float64) float64
}

func identity(v float64) float64 {
	return v
}

func wattHoursToKilowattHours(v float64) float64 {
	return v / 1000
}

var SensorFields = []SensorField{
	powerField("solar_power"),
	powerField("battery_power"),
	powerField("load_power"),
	powerField("grid_power"),
	energyField("usage_solar_today"),
	energyField("usage_solar_total"),
	energyField("usage_battery_discharge_today"),
	energyField("usage_battery_discharge_total"),
	energyField("usage_grid_today"),
	energyField("usage_grid_total"),
	energyField("usage_load_today"),
	energyField("usage_load_total"),
}

func powerField(name string) SensorField {
	return SensorField{
		Name:        name,
		DeviceClass: DEVICE_CLASS_POWER,
		Unit:        UNIT_WATT,
		StateClass:  STATE_CLASS_MEASUREMENT,
		Decimals:    0,
		Transform:   identity,
	}
}

func energyField(name string) SensorField {
	return SensorField{
		Name:        name,
		DeviceClass: DEVICE_CLASS_ENERGY,
		Unit:        UNIT_KILOWATT_HOUR,
		StateClass:  STATE_CLASS_TOTAL_INCREASING,
		Decimals:    2,
		Transform:   wattHoursToKilowattHours,
	}
}

var inverterModels = map[string]string{
	"tq":         "uhc",
	"mr":         "uhome",
	"sk":         "ufox",
	"uhc-lv":     "uhc-lv",
	"uhc-hv":     "uhc-hv",
	"uhc-3-lv":   "uhc-3-lv",
	"uhc-3-hv":   "uhc-3-hv",
	"uhome-lv":   "uhome-lv",
	"uhome-hv":   "uhome-hv",
	"uhome-3-lv": "uhome-3-lv",
	"uhome-3-hv": "uhome-3-hv",
	"upc":        "upc",
	"ufox-x2":    "ufox-x2",
	"ufox-x3":    "ufox-x3",
	"monet":      "monet",
	"eboxmini":   "eboxmini",
	"usgr":       "upc-hbk",
	"upc-hb":     "upc-hb",
	"usj":        "uhc-i&c-u2",
	"bdc":        "bdc",
}

// InverterModelName maps a model code to its display name. Unknown codes are
// returned as is.
func InverterModelName(code string) string {
	if name, ok := inverterModels[code]; ok {
		return name
	}
	return code
}

var nonTopicChars = regexp.MustCompile("[^a-z0-9_]+")

// topicSafe turns an arbitrary string into a valid MQTT topic level.
func topicSafe(s string) string {
	return nonTopicChars.ReplaceAllString(strings.ToLower(s), "_")
}

func SensorUniqueId(deviceId, field string) string {
	return fmt.Sprintf("%s_%s_%s", INTEGRATION_DOMAIN, deviceId, field)
}

func SensorObjectId(deviceSn, field string) string {
	return topicSafe(fmt.Sprintf("%s_%s", deviceSn, field))
}

// SensorFriendlyName renders solar_power as "Solar Power".
func SensorFriendlyName(field string) string {
	words := strings.Split(field, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// deviceNode is the name a device is addressed with in MQTT topics.
func deviceNode(d ucancloud.Device) string {
	if d.Serial != "" {
		return d.Serial
	}
	return d.Id
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("ucan_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: MANUFACTURER,
		Model:        "ucan2mqtt",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("UCAN bridge %s", md5HashShort(baseTopic)),
	}
}

func InverterDevice(d ucancloud.Device) Device {
	return Device{
		Id:           topicSafe(fmt.Sprintf("ucan_%s", d.Id)),
		Manufacturer: MANUFACTURER,
		Model:        InverterModelName(d.InverterModel),
		Name:         deviceNode(d),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Bridge state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       fmt.Sprintf("%s_state", bridgeDevice.Id),
	}}
}

// InverterSensors returns one sensor per field. Only the first one carries
// the full device description.
func InverterSensors(inverterDevice Device, d ucancloud.Device) []GenericSensor {
	sensors := make([]GenericSensor, 0, len(SensorFields))
	for i, field := range SensorFields {
		dev := inverterDevice
		if i > 0 {
			dev = IdDevice(inverterDevice)
		}
		precision := field.Decimals
		sensors = append(sensors, GenericSensor{
			Device:            dev,
			Id:                SensorObjectId(deviceNode(d), field.Name),
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              SensorFriendlyName(field.Name),
			StateClass:        field.StateClass,
			DeviceClass:       field.DeviceClass,
			UnitOfMeasurement: field.Unit,
			UniqueId:          SensorUniqueId(d.Id, field.Name),
			Precision:         &precision,
		})
	}
	return sensors
}

// DeviceSensorObjectId is the state topic id of a field of the given device.
func DeviceSensorObjectId(d ucancloud.Device, field string) string {
	return SensorObjectId(deviceNode(d), field)
}

func md5HashShort(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])[:6]
}
