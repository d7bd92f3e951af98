package domain

import "github.com/berfenger/ucan2mqtt/pkg/ucancloud"

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_POLLER       = "poller"
	ACTOR_ID_SENSOR       = "sensor"
	ACTOR_ID_AUTH         = "auth"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// SignInRequest asks the auth actor to establish a new session.
type SignInRequest struct {
	ActorRequestMixIn
	Reason string
}

type SignInResponse struct {
	ActorResponseMixIn
	Role ucancloud.Role
}

// ReauthRequest is sent to the master by any actor whose cloud call failed
// with an authentication error. The sender stays paused until resumed.
type ReauthRequest struct {
	From  string
	Error error
}

// ResumeRequest restarts a paused poller or sensor publisher.
type ResumeRequest struct {
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
