package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/berfenger/ucan2mqtt/internal/core/domain"
	"github.com/berfenger/ucan2mqtt/pkg/ucancloud"

	"go.uber.org/zap"
)

type Projection struct {
	Logger *zap.Logger
}

type SensorReading struct {
	Field domain.SensorField
	Value float64
}

// Value reads field from a status payload. An absent field reads as 0, and
// so does a value that cannot be converted.
func (p Projection) Value(status ucancloud.Object, field domain.SensorField) float64 {
	raw, ok := status[field.Name]
	if !ok || raw == nil {
		return 0
	}
	v, err := ToFloat(raw)
	if err != nil {
		p.Logger.Error("projection: cannot convert field", zap.String("field", field.Name), zap.Error(err))
		return 0
	}
	return field.Transform(v)
}

func (p Projection) Readings(status ucancloud.Object) []SensorReading {
	readings := make([]SensorReading, 0, len(domain.SensorFields))
	for _, field := range domain.SensorFields {
		readings = append(readings, SensorReading{
			Field: field,
			Value: p.Value(status, field),
		})
	}
	return readings
}

func (p Projection) UpdateEvents(device ucancloud.Device, status ucancloud.Object) []domain.FloatSensorUpdateEvent {
	readings := p.Readings(status)
	events := make([]domain.FloatSensorUpdateEvent, 0, len(readings))
	for _, r := range readings {
		events = append(events, domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: domain.DeviceSensorObjectId(device, r.Field.Name),
			},
			Value:    r.Value,
			Decimals: r.Field.Decimals,
		})
	}
	return events
}

func ToFloat(raw any) (float64, error) {
	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, err
		}
		v = f
	default:
		return 0, fmt.Errorf("unsupported value type %T", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("value is not finite: %v", v)
	}
	return v, nil
}
