package service

import (
	"encoding/json"
	"testing"

	"github.com/berfenger/ucan2mqtt/internal/core/domain"
	"github.com/berfenger/ucan2mqtt/pkg/ucancloud"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func fieldByName(name string) domain.SensorField {
	for _, f := range domain.SensorFields {
		if f.Name == name {
			return f
		}
	}
	panic("unknown field " + name)
}

func TestProjectionValue(t *testing.T) {
	assert := assert.New(t)
	p := Projection{Logger: zap.NewNop()}

	status := ucancloud.Object{
		"solar_power":       json.Number("2500"),
		"battery_power":     "-300.5",
		"load_power":        "n/a",
		"usage_solar_today": 12500.0,
		"grid_power":        []any{1},
	}

	assert.Equal(2500.0, p.Value(status, fieldByName("solar_power")))
	assert.Equal(-300.5, p.Value(status, fieldByName("battery_power")))
	assert.Equal(0.0, p.Value(status, fieldByName("load_power")), "non numeric reads as zero")
	assert.Equal(0.0, p.Value(status, fieldByName("grid_power")), "unsupported type reads as zero")
	assert.Equal(12.5, p.Value(status, fieldByName("usage_solar_today")))
	assert.Equal(0.0, p.Value(status, fieldByName("usage_grid_total")), "absent field reads as zero")
	assert.Equal(0.0, p.Value(nil, fieldByName("solar_power")))
}

func TestProjectionUpdateEvents(t *testing.T) {
	p := Projection{Logger: zap.NewNop()}
	dev := ucancloud.Device{Id: "1001", Serial: "SN1001"}

	events := p.UpdateEvents(dev, ucancloud.Object{"solar_power": 10.0})
	assert.Len(t, events, len(domain.SensorFields))
	assert.Equal(t, "sn1001_solar_power", events[0].Id)
	assert.Equal(t, 10.0, events[0].Value)
	for _, ev := range events[1:] {
		assert.Equal(t, 0.0, ev.Value, ev.Id)
	}
}

func TestToFloat(t *testing.T) {
	_, err := ToFloat(json.Number("abc"))
	assert.Error(t, err)
	_, err = ToFloat("NaN")
	assert.Error(t, err)
	v, err := ToFloat(7)
	assert.NoError(t, err)
	assert.Equal(t, 7.0, v)
}
