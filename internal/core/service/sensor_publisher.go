package service

import (
	"context"

	"github.com/berfenger/ucan2mqtt/internal/core/domain"
	"github.com/berfenger/ucan2mqtt/internal/core/port"
	"github.com/berfenger/ucan2mqtt/internal/core/state"
	"github.com/berfenger/ucan2mqtt/pkg/ucancloud"

	"go.uber.org/zap"
)

// SensorPublisher refreshes the status of every known device and projects
// it into sensor update events.
type SensorPublisher struct {
	Client     port.CloudClient
	Store      *state.Store
	Projection Projection
	Logger     *zap.Logger
}

type SensorCollectResult struct {
	Devices      []ucancloud.Device
	ListFetched  bool
	Events       []domain.FloatSensorUpdateEvent
	DeviceErrors map[string]error
}

func NewSensorPublisher(client port.CloudClient, store *state.Store, logger *zap.Logger) *SensorPublisher {
	return &SensorPublisher{
		Client:     client,
		Store:      store,
		Projection: Projection{Logger: logger},
		Logger:     logger,
	}
}

// Collect uses the cached device list, fetching it once when the poller has
// not populated it yet. An authentication error aborts the whole run; any
// other failure only skips the affected device.
func (s *SensorPublisher) Collect(ctx context.Context) (SensorCollectResult, error) {
	result := SensorCollectResult{DeviceErrors: map[string]error{}}

	list := s.Store.DeviceList()
	if len(list) == 0 {
		fetched, err := s.Client.DeviceList(ctx)
		if err != nil {
			return result, err
		}
		list = fetched
		result.ListFetched = true
	}
	result.Devices = list.Devices()

	for _, device := range result.Devices {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		status, err := s.Client.DeviceStatus(ctx, device.Id)
		if err != nil {
			if ucancloud.IsAuthError(err) {
				return result, err
			}
			s.Logger.Warn("sensor: device status failed", zap.String("device_id", device.Id), zap.Error(err))
			result.DeviceErrors[device.Id] = err
			continue
		}
		result.Events = append(result.Events, s.Projection.UpdateEvents(device, status)...)
	}
	return result, nil
}
