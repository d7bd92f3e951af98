package actor

import (
	"context"
	"fmt"
	"log"
	"time"

	adactor "github.com/berfenger/ucan2mqtt/internal/adapter/actor"
	"github.com/berfenger/ucan2mqtt/internal/config"
	"github.com/berfenger/ucan2mqtt/internal/core/domain"
	"github.com/berfenger/ucan2mqtt/internal/core/port"
	"github.com/berfenger/ucan2mqtt/internal/core/service"
	"github.com/berfenger/ucan2mqtt/internal/core/state"
	"github.com/berfenger/ucan2mqtt/internal/metrics"
	. "github.com/berfenger/ucan2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

const tokenWatchInterval = 1 * time.Minute

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	client     port.CloudClient
	store      *state.Store
	tokenStore port.TokenStore
	metrics    *metrics.Metrics

	currentHealthCheck healthCheckResult
	eventStream        *eventstream.EventStream
	authActor          *actor.PID
	pollerActor        *actor.PID
	sensorActor        *actor.PID
	mqttActor          *actor.PID
	children           []childRef
	mqttActorProvider  MQTTActorProvider
	tokenWatch         *service.TokenWatch
	reauthPending      bool
	logger             *zap.Logger
}

type childRef struct {
	id  string
	pid *actor.PID
}

type healthCheckResult struct {
	healthy        map[string]bool
	expected       int
	checksReceived int
	respondTo      *actor.PID
}

// NewMasterOfPuppetsActor builds the root actor. mqttActorProvider may be nil
// when MQTT is disabled.
func NewMasterOfPuppetsActor(config config.Config, client port.CloudClient, store *state.Store, tokenStore port.TokenStore,
	m *metrics.Metrics, mqttActorProvider MQTTActorProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:            config,
		behavior:          actor.NewBehavior(),
		stash:             &Stash{},
		client:            client,
		store:             store,
		tokenStore:        tokenStore,
		metrics:           m,
		logger:            ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:       &eventstream.EventStream{},
		mqttActorProvider: mqttActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

// EventStream is the bus children publish device and sensor events on.
func (state *MasterOfPuppetsActor) EventStream() *eventstream.EventStream {
	return state.eventStream
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		signedIn := state.client.Authenticated()

		// start Auth child
		authActorPID, err := state.startAuthActor(ctx)
		if err != nil {
			panic(err)
		}
		state.authActor = authActorPID

		// start MQTT child before the producers so no event is lost
		if state.config.MQTT.Enabled() && state.mqttActorProvider != nil {
			mqttActorPID, err := state.startMQTTActor(ctx)
			if err != nil {
				panic(err)
			}
			state.mqttActor = mqttActorPID
			state.children = append(state.children, childRef{id: domain.ACTOR_ID_MQTT, pid: mqttActorPID})

			// start HA Discovery
			if state.config.MQTT.HADiscoveryEnable {
				_, err := state.startHADiscoveryActor(ctx)
				if err != nil {
					panic(err)
				}
			}
		}

		// start Poller child
		pollerActorPID, err := state.startPollerActor(ctx)
		if err != nil {
			panic(err)
		}
		state.pollerActor = pollerActorPID

		// start Sensor child
		sensorActorPID, err := state.startSensorActor(ctx)
		if err != nil {
			panic(err)
		}
		state.sensorActor = sensorActorPID

		state.children = append(state.children,
			childRef{id: domain.ACTOR_ID_AUTH, pid: authActorPID},
			childRef{id: domain.ACTOR_ID_POLLER, pid: pollerActorPID},
			childRef{id: domain.ACTOR_ID_SENSOR, pid: sensorActorPID},
		)

		if !signedIn {
			state.requestSignIn(ctx, "startup")
		}

		state.startTokenWatch(ctx)

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset(len(state.children))
		state.currentHealthCheck.respondTo = ctx.Sender()
		for _, child := range state.children {
			id := child.id
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(child.pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      id,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.ReauthRequest:
		if state.reauthPending {
			state.logger.Debug("master@default sign in already pending", zap.String("from", msg.From))
			return
		}
		state.logger.Info("master@default session lost, signing in again", zap.String("from", msg.From), zap.Error(msg.Error))
		state.requestSignIn(ctx, msg.From)
	case domain.SignInResponse:
		state.reauthPending = false
		if msg.HasResponseError() {
			state.logger.Error("master@default sign in failed", zap.Error(msg.GetResponseError()))
			return
		}
		ctx.Send(state.pollerActor, domain.ResumeRequest{})
		ctx.Send(state.sensorActor, domain.ResumeRequest{})
	case *actor.Terminated:
		state.logger.Warn("master@default child terminated", zap.String("who", msg.Who.Id))
	case *actor.Stopping:
		if state.tokenWatch != nil {
			state.tokenWatch.Stop()
		}
	default:
		state.logger.Debug("master@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		state.currentHealthCheck.healthy[msg.Id] = msg.Healthy
		if state.currentHealthCheck.allReceived() {
			ctx.CancelReceiveTimeout()
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) requestSignIn(ctx actor.Context, reason string) {
	state.reauthPending = true
	ctx.Request(state.authActor, domain.SignInRequest{Reason: reason})
}

func (state *MasterOfPuppetsActor) startTokenWatch(ctx actor.Context) {
	root := ctx.ActorSystem().Root
	self := ctx.Self()
	state.tokenWatch = service.NewTokenWatch(state.client.Token, func() {
		root.Send(self, domain.ReauthRequest{From: "token_watch"})
	}, tokenWatchInterval, state.config.Auth.TokenExpiryMargin(), state.logger)
	if err := state.tokenWatch.Start(context.Background()); err != nil {
		state.logger.Warn("master@starting token watch disabled", zap.Error(err))
		state.tokenWatch = nil
	}
}

func (state *MasterOfPuppetsActor) startAuthActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(3, 10*time.Second, decider)

	authProps := actor.PropsFromProducer(func() actor.Actor {
		return NewAuthActor(state.client, state.tokenStore, state.config.Cloud.Sign, state.config.Cloud.Password,
			state.config.Auth.RetryInterval(), state.eventStream, state.metrics, state.logger).
			WithTaskTimeout(state.config.Cloud.TaskTimeout(1))
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(authProps, domain.ACTOR_ID_AUTH)
}

func (state *MasterOfPuppetsActor) startPollerActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(3, 10*time.Second, decider)

	poller := service.NewPoller(state.client, state.store, state.logger)
	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		// without a session the actor waits for a ResumeRequest
		return NewPollerActor(poller, state.config.Poll.Interval(), !state.client.Authenticated(), state.eventStream, state.metrics, state.logger).
			WithTaskTimeout(state.config.Cloud.TaskTimeout(service.PollerCallsPerTick))
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(pollerProps, domain.ACTOR_ID_POLLER)
}

func (state *MasterOfPuppetsActor) startSensorActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(3, 10*time.Second, decider)

	publisher := service.NewSensorPublisher(state.client, state.store, state.logger)
	sensorProps := actor.PropsFromProducer(func() actor.Actor {
		// a round covers every listed device, bound it by the sensor interval
		return NewSensorActor(publisher, state.config.Poll.SensorInterval(), !state.client.Authenticated(), state.eventStream, state.metrics, state.logger).
			WithTaskTimeout(state.config.Poll.SensorInterval())
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(sensorProps, domain.ACTOR_ID_SENSOR)
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.mqttActor, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
}

func (state *healthCheckResult) reset(expected int) {
	state.healthy = map[string]bool{}
	state.expected = expected
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived >= state.expected
}

func (state *healthCheckResult) allHealthy() bool {
	if len(state.healthy) < state.expected {
		return false
	}
	for _, healthy := range state.healthy {
		if !healthy {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
