package service

import (
	"context"
	"sync/atomic"

	"github.com/berfenger/ucan2mqtt/internal/core/domain"
	"github.com/berfenger/ucan2mqtt/internal/core/port"
	"github.com/berfenger/ucan2mqtt/internal/core/state"
	"github.com/berfenger/ucan2mqtt/pkg/ucancloud"

	"go.uber.org/zap"
)

// PollerCallsPerTick is the largest number of sequential cloud calls a tick
// makes: the list plus status, info, config, details and alarms.
const PollerCallsPerTick = 6

type Poller struct {
	Client port.CloudClient
	Store  *state.Store
	Logger *zap.Logger

	counter atomic.Uint64
}

type PollTickResult struct {
	Tick            uint64
	ListRefreshed   bool
	Devices         []ucancloud.Device
	DeviceRefreshed bool
}

func NewPoller(client port.CloudClient, store *state.Store, logger *zap.Logger) *Poller {
	return &Poller{
		Client: client,
		Store:  store,
		Logger: logger,
	}
}

func (p *Poller) Counter() uint64 {
	return p.counter.Load()
}

// Tick runs one polling iteration. The device list is refreshed on even
// ticks. The selected device is refreshed when its status is still empty or
// on even ticks. The first error aborts the iteration and is returned; cache
// entries written before it are kept.
func (p *Poller) Tick(ctx context.Context) (PollTickResult, error) {
	tick := p.counter.Add(1)
	result := PollTickResult{Tick: tick}
	even := tick%2 == 0

	if even {
		list, err := p.Client.DeviceList(ctx)
		if err != nil {
			return result, err
		}
		p.Store.Set(domain.CACHE_DEVICE_LIST, list)
		result.ListRefreshed = true
		result.Devices = list.Devices()
		p.Logger.Debug("poller: device list updated", zap.Int("devices", len(list)))
	}

	current, selected := p.Store.CurrentDevice()
	if !selected || current.DeviceId == "" {
		return result, nil
	}
	if !p.Store.StatusEmpty() && !even {
		return result, nil
	}

	if err := p.refreshDevice(ctx, current.DeviceId); err != nil {
		return result, err
	}
	result.DeviceRefreshed = true
	return result, nil
}

func (p *Poller) refreshDevice(ctx context.Context, deviceId string) error {
	status, err := p.Client.DeviceStatus(ctx, deviceId)
	if err != nil {
		return err
	}
	p.store(deviceId, domain.CACHE_DEVICE_STATUS, status)

	info, err := p.Client.DeviceInfo(ctx, deviceId)
	if err != nil {
		return err
	}
	cfg, err := p.Client.DeviceConfig(ctx, deviceId)
	if err != nil {
		return err
	}
	p.store(deviceId, domain.CACHE_DEVICE_INFO, WithTimezone(info, cfg))

	details, err := p.Client.DeviceDetails(ctx, deviceId)
	if err != nil {
		return err
	}
	p.store(deviceId, domain.CACHE_DEVICE_DETAILS, details)

	alarms, err := p.Client.DeviceAlarms(ctx, deviceId)
	if err != nil {
		return err
	}
	p.store(deviceId, domain.CACHE_DEVICE_ALARMS, alarms)
	return nil
}

func (p *Poller) store(deviceId string, key domain.CacheKey, value any) {
	if !p.Store.SetForDevice(deviceId, key, value) {
		p.Logger.Debug("poller: dropping stale result", zap.String("device_id", deviceId), zap.String("key", string(key)))
	}
}

// WithTimezone returns a copy of info carrying the timezone of the device
// config, 0 when the config has none.
func WithTimezone(info, cfg ucancloud.Object) ucancloud.Object {
	merged := make(ucancloud.Object, len(info)+1)
	for k, v := range info {
		merged[k] = v
	}
	if tz, ok := cfg["timezone"]; ok && tz != nil {
		merged["timezone"] = tz
	} else {
		merged["timezone"] = 0
	}
	return merged
}
