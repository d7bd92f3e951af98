package domain

import (
	"testing"

	"github.com/berfenger/ucan2mqtt/pkg/ucancloud"
	"github.com/stretchr/testify/assert"
)

func TestInverterModelName(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("uhc", InverterModelName("tq"))
	assert.Equal("uhome", InverterModelName("mr"))
	assert.Equal("ufox", InverterModelName("sk"))
	assert.Equal("upc-hbk", InverterModelName("usgr"))
	assert.Equal("uhc-i&c-u2", InverterModelName("usj"))
	assert.Equal("ufox-x3", InverterModelName("ufox-x3"))
	assert.Equal("brand-new", InverterModelName("brand-new"))
}

func TestSensorNaming(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("ucan_assistant_1001_solar_power", SensorUniqueId("1001", "solar_power"))
	assert.Equal("ab_12_cd_grid_power", SensorObjectId("AB-12 CD", "grid_power"))
	assert.Equal("Solar Power", SensorFriendlyName("solar_power"))
	assert.Equal("Usage Battery Discharge Today", SensorFriendlyName("usage_battery_discharge_today"))
}

func TestInverterSensors(t *testing.T) {
	d := ucancloud.Device{Id: "1001", Serial: "SN01", InverterModel: "mr"}
	dev := InverterDevice(d)
	assert.Equal(t, "ucan_1001", dev.Id)
	assert.Equal(t, "uhome", dev.Model)
	assert.Equal(t, MANUFACTURER, dev.Manufacturer)

	sensors := InverterSensors(dev, d)
	assert.Len(t, sensors, len(SensorFields))
	assert.Equal(t, "sn01_solar_power", sensors[0].Id)
	assert.Equal(t, "uhome", sensors[0].Device.Model)
	assert.Empty(t, sensors[1].Device.Model)
	assert.Equal(t, dev.Id, sensors[1].Device.Id)
}

func TestEnergyFieldTransform(t *testing.T) {
	for _, f := range SensorFields {
		switch f.DeviceClass {
		case DEVICE_CLASS_ENERGY:
			assert.Equal(t, 1.5, f.Transform(1500), f.Name)
			assert.Equal(t, UNIT_KILOWATT_HOUR, f.Unit)
		case DEVICE_CLASS_POWER:
			assert.Equal(t, 1500.0, f.Transform(1500), f.Name)
			assert.Equal(t, UNIT_WATT, f.Unit)
		}
	}
}
