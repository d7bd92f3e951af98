package domain

import (
	"fmt"

	"github.com/berfenger/ucan2mqtt/pkg/ucancloud"
)

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type FloatSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

// DeviceListUpdated is published on the event stream after every successful
// device list refresh.
type DeviceListUpdated struct {
	Devices []ucancloud.Device
}

// SessionEstablished is published after a successful sign-in.
type SessionEstablished struct {
	Role ucancloud.Role
}
