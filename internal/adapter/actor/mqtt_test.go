package actor

import (
	"testing"
	"time"

	"github.com/berfenger/ucan2mqtt/internal/core/domain"
	"github.com/berfenger/ucan2mqtt/internal/util"
	"github.com/berfenger/ucan2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMQTTActor(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	es := eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, &es, logger) })
	pid := context.Spawn(props)

	time.Sleep(500 * time.Millisecond)

	msg := domain.ActorHealthRequest{}
	result, err := context.RequestFuture(pid, msg, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.True(t, resp.Healthy)
	assert.Equal(t, domain.ACTOR_ID_MQTT, resp.Id)

	es.Publish(domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: "sn1001_solar_power",
		},
		Value: 2500,
	})
	es.Publish(domain.DeviceListUpdated{})

	time.Sleep(500 * time.Millisecond)

	context.Stop(pid)

	time.Sleep(500 * time.Millisecond)

	as.Shutdown()
}

func TestEvent2MQTTMessage(t *testing.T) {
	cfg := util.LoadTestConfig()
	act := NewTestMQTTActor(&cfg, &eventstream.EventStream{}, zap.NewNop())
	as := actor.NewActorSystem()
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return act }))
	defer as.Shutdown()
	// the client is created on Started
	_, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, time.Second).Result()
	require.NoError(t, err)

	msg := act.event2MQTTMessage(domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: "sn1001_usage_solar_today"},
		Value:                  12.5,
		Decimals:               2,
	})
	require.NotNil(t, msg)
	assert.Equal(t, "ucan/sensor/sn1001_usage_solar_today/state", msg.topic)
	assert.Equal(t, "12.50", msg.message)

	msg = act.event2MQTTMessage(domain.BridgeStateUpdateEvent{Value: false})
	require.NotNil(t, msg)
	assert.Equal(t, "ucan/bridge/state", msg.topic)
	assert.Equal(t, "offline", msg.message)

	assert.Nil(t, act.event2MQTTMessage(domain.DeviceListUpdated{}))
}
