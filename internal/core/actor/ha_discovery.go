package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/ucan2mqtt/internal/config"
	"github.com/berfenger/ucan2mqtt/internal/core/domain"
	"github.com/berfenger/ucan2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// HADiscoveryActor announces the bridge and, as devices show up in the
// device list, the sensors of every inverter.
type HADiscoveryActor struct {
	config         *config.Config
	behavior       actor.Behavior
	stash          *actorutil.Stash
	mqttActor      *actor.PID
	eventStream    *eventstream.EventStream
	eventStreamSub *eventstream.Subscription
	bridgeDevice   domain.Device
	announced      map[string]bool

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, mqttActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:      config,
		mqttActor:   mqttActor,
		eventStream: eventStream,
		announced:   map[string]bool{},
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		root := ctx.ActorSystem().Root
		self := ctx.Self()
		state.eventStreamSub = state.eventStream.Subscribe(func(value any) {
			if ev, ok := value.(domain.DeviceListUpdated); ok {
				root.Send(self, ev)
			}
		})

		// wait for MQTT to be connected
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 5*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@starting ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		if !msg.Healthy {
			panic(errors.New("MQTT actor is not healthy"))
		}
		state.bridgeDevice = domain.BridgeDevice(state.config.MQTT.BaseTopic)
		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors: domain.BridgeSensors(state.bridgeDevice),
		})
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting, *actor.Stopping:
		state.unsubscribe()
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.DeviceListUpdated:
		var sensors []domain.GenericSensor
		for _, d := range msg.Devices {
			if d.Id == "" || state.announced[d.Id] {
				continue
			}
			inverterDevice := domain.InverterDevice(d)
			inverterDevice.ViaDevice = state.bridgeDevice.Id
			sensors = append(sensors, domain.InverterSensors(inverterDevice, d)...)
			state.announced[d.Id] = true
		}
		if len(sensors) == 0 {
			return
		}
		state.logger.Debug("hadiscovery@default: announce sensors", zap.Int("count", len(sensors)))
		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{Sensors: sensors})
	case *actor.Restarting, *actor.Stopping:
		state.unsubscribe()
	default:
		state.logger.Debug("hadiscovery@default: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) unsubscribe() {
	if state.eventStreamSub != nil {
		state.eventStream.Unsubscribe(state.eventStreamSub)
		state.eventStreamSub = nil
	}
}
