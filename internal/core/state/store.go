// Package state holds the process-lifetime cache of cloud payloads shared by
// the poller, the HTTP views, the sensor projection and metrics.
package state

import (
	"sync"

	"github.com/berfenger/ucan2mqtt/internal/core/domain"
	"github.com/berfenger/ucan2mqtt/pkg/ucancloud"
)

// Store is safe for concurrent use. Values are replaced wholesale and must
// not be mutated after being handed to Set.
type Store struct {
	mu            sync.RWMutex
	currentDevice *domain.CurrentDevice
	entries       map[domain.CacheKey]any
}

func NewStore() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.currentDevice = nil
	s.entries = map[domain.CacheKey]any{
		domain.CACHE_DEVICE_LIST: ucancloud.DeviceList{},
	}
	for _, key := range domain.DeviceCacheKeys {
		s.entries[key] = EmptyValue(key)
	}
}

// EmptyValue is the value of an entry that was never populated.
func EmptyValue(key domain.CacheKey) any {
	switch key {
	case domain.CACHE_DEVICE_LIST:
		return ucancloud.DeviceList{}
	case domain.CACHE_CURRENT_DEVICE:
		return nil
	default:
		return ucancloud.Object{}
	}
}

func (s *Store) Get(key domain.CacheKey) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if key == domain.CACHE_CURRENT_DEVICE {
		if s.currentDevice == nil {
			return nil
		}
		return *s.currentDevice
	}
	return s.entries[key]
}

func (s *Store) Set(key domain.CacheKey, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == domain.CACHE_CURRENT_DEVICE {
		return
	}
	s.entries[key] = value
}

// SetForDevice stores a per-device payload only if deviceId is still the
// selected device. It reports whether the value was stored.
func (s *Store) SetForDevice(deviceId string, key domain.CacheKey, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentDevice == nil || s.currentDevice.DeviceId != deviceId {
		return false
	}
	s.entries[key] = value
	return true
}

// SelectDevice makes dev the current device and empties every per-device
// entry in the same critical section.
func (s *Store) SelectDevice(dev domain.CurrentDevice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentDevice = &dev
	for _, key := range domain.DeviceCacheKeys {
		s.entries[key] = EmptyValue(key)
	}
}

func (s *Store) CurrentDevice() (domain.CurrentDevice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentDevice == nil {
		return domain.CurrentDevice{}, false
	}
	return *s.currentDevice, true
}

// CurrentStatus returns the selected device together with its cached status,
// read in one critical section so both belong to the same selection.
func (s *Store) CurrentStatus() (domain.CurrentDevice, ucancloud.Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentDevice == nil {
		return domain.CurrentDevice{}, nil, false
	}
	status, _ := s.entries[domain.CACHE_DEVICE_STATUS].(ucancloud.Object)
	return *s.currentDevice, status, true
}

func (s *Store) DeviceList() ucancloud.DeviceList {
	list, _ := s.Get(domain.CACHE_DEVICE_LIST).(ucancloud.DeviceList)
	return list
}

func (s *Store) Status() ucancloud.Object {
	status, _ := s.Get(domain.CACHE_DEVICE_STATUS).(ucancloud.Object)
	return status
}

// StatusEmpty reports whether the status entry holds no data.
func (s *Store) StatusEmpty() bool {
	return len(s.Status()) == 0
}

// Clear discards every entry and the device selection.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}
