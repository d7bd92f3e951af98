package metrics

import (
	"github.com/berfenger/ucan2mqtt/internal/core/service"
	"github.com/berfenger/ucan2mqtt/internal/core/state"

	"github.com/prometheus/client_golang/prometheus"
)

// StatusCollector projects the cached status of the selected device on
// every scrape.
type StatusCollector struct {
	store      *state.Store
	projection service.Projection

	sensorValue *prometheus.Desc
	selected    *prometheus.Desc
	devices     *prometheus.Desc
}

func NewStatusCollector(store *state.Store, projection service.Projection) *StatusCollector {
	return &StatusCollector{
		store:      store,
		projection: projection,
		sensorValue: prometheus.NewDesc(
			namespace+"_sensor_value",
			"Sensor value of the selected device, in the unit of the field",
			[]string{"device_id", "device_sn", "field", "unit"},
			nil,
		),
		selected: prometheus.NewDesc(
			namespace+"_device_selected",
			"1 when a device is selected and its status is cached",
			[]string{"device_id", "device_sn"},
			nil,
		),
		devices: prometheus.NewDesc(
			namespace+"_devices",
			"Number of devices in the cached device list",
			nil,
			nil,
		),
	}
}

func (c *StatusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sensorValue
	ch <- c.selected
	ch <- c.devices
}

func (c *StatusCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.devices, prometheus.GaugeValue, float64(len(c.store.DeviceList())))

	current, status, ok := c.store.CurrentStatus()
	if !ok {
		return
	}
	if len(status) == 0 {
		ch <- prometheus.MustNewConstMetric(c.selected, prometheus.GaugeValue, 0, current.DeviceId, current.DeviceSn)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.selected, prometheus.GaugeValue, 1, current.DeviceId, current.DeviceSn)
	for _, r := range c.projection.Readings(status) {
		ch <- prometheus.MustNewConstMetric(c.sensorValue, prometheus.GaugeValue, r.Value,
			current.DeviceId, current.DeviceSn, r.Field.Name, r.Field.Unit)
	}
}
