package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/ucan2mqtt/internal/core/domain"
	"github.com/berfenger/ucan2mqtt/internal/core/service"
	"github.com/berfenger/ucan2mqtt/internal/metrics"
	. "github.com/berfenger/ucan2mqtt/internal/util/actorutil"
	"github.com/berfenger/ucan2mqtt/pkg/ucancloud"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// SensorActor periodically projects the status of every device into sensor
// update events and publishes them on the event stream.
type SensorActor struct {
	ActorWithStates
	scheduler   *scheduler.TimerScheduler
	stash       *Stash
	publisher   *service.SensorPublisher
	interval    time.Duration
	eventStream *eventstream.EventStream
	metrics     *metrics.Metrics
	startPaused bool

	baseCtx context.Context
	cancel  context.CancelFunc
	stopped bool

	taskTimeout time.Duration

	logger *zap.Logger
}

type sensorTick struct {
}

type sensorTickDone struct {
	Result service.SensorCollectResult
	Error  error
}

func NewSensorActor(publisher *service.SensorPublisher, interval time.Duration, startPaused bool, eventStream *eventstream.EventStream, m *metrics.Metrics, logger *zap.Logger) *SensorActor {
	act := &SensorActor{
		publisher:   publisher,
		interval:    interval,
		startPaused: startPaused,
		eventStream: eventStream,
		metrics:     m,
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_SENSOR, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(sensorStartingState{actor: act})
	return act
}

// WithTaskTimeout bounds every sensor round.
func (state *SensorActor) WithTaskTimeout(timeout time.Duration) *SensorActor {
	state.taskTimeout = timeout
	return state
}

func (state *SensorActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

func (state *SensorActor) health(ctx actor.Context, healthy bool) {
	ctx.Respond(domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_SENSOR,
		Healthy: healthy,
		State:   state.StateName(),
	})
}

func (state *SensorActor) stop() {
	state.stopped = true
	if state.cancel != nil {
		state.cancel()
	}
}

// Starting state

type sensorStartingState struct {
	ActorState
	actor *SensorActor
}

func (s sensorStartingState) Name() string {
	return "starting"
}

func (s sensorStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		s.actor.logger.Debug("sensor@starting started")
		s.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		s.actor.baseCtx, s.actor.cancel = context.WithCancel(context.Background())
		if s.actor.startPaused {
			s.actor.Become(sensorPausedState{actor: s.actor})
		} else {
			s.actor.Become(sensorIdleState{actor: s.actor})
			ctx.Send(ctx.Self(), sensorTick{})
		}
		s.actor.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		s.actor.logger.Debug("sensor@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		s.actor.stash.Stash(ctx, msg)
	}
}

// Idle state

type sensorIdleState struct {
	ActorState
	actor *SensorActor
}

func (s sensorIdleState) Name() string {
	return "idle"
}

func (s sensorIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		s.actor.health(ctx, true)
	case sensorTick:
		if s.actor.stopped {
			return
		}
		publisher := s.actor.publisher
		baseCtx := s.actor.baseCtx
		timeout := s.actor.taskTimeout
		NewBackgroundTask(ctx, func() (*sensorTickDone, error) {
			roundCtx, cancel := taskContext(baseCtx, timeout)
			defer cancel()
			res, err := publisher.Collect(roundCtx)
			return &sensorTickDone{Result: res, Error: err}, nil
		}).Recover(func(err error) sensorTickDone {
			return sensorTickDone{Error: err}
		}).WithTimeout(taskGrace(timeout)).PipeTo(ctx.Self())
		s.actor.Become(sensorRunningState{actor: s.actor})
	case domain.ResumeRequest:
	case *actor.Stopping:
		s.actor.stop()
	default:
		s.actor.logger.Debug("sensor@idle: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Running state

type sensorRunningState struct {
	ActorState
	actor *SensorActor
}

func (s sensorRunningState) Name() string {
	return "running"
}

func (s sensorRunningState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		s.actor.health(ctx, true)
	case sensorTickDone:
		for _, ev := range msg.Result.Events {
			s.actor.eventStream.Publish(ev)
		}
		s.actor.metrics.ObserveSensorUpdates(len(msg.Result.Events))
		if msg.Result.ListFetched {
			s.actor.eventStream.Publish(domain.DeviceListUpdated{Devices: msg.Result.Devices})
		}
		for _, err := range msg.Result.DeviceErrors {
			s.actor.metrics.ObserveError(err)
		}
		if msg.Error != nil {
			s.actor.metrics.ObserveError(msg.Error)
			if ucancloud.IsAuthError(msg.Error) {
				s.actor.logger.Warn("sensor@running: authentication error, pausing", zap.Error(msg.Error))
				ctx.Send(ctx.Parent(), domain.ReauthRequest{From: domain.ACTOR_ID_SENSOR, Error: msg.Error})
				s.actor.Become(sensorPausedState{actor: s.actor})
				return
			}
			s.actor.logger.Error("sensor@running: update failed", zap.Error(msg.Error))
		} else {
			s.actor.logger.Debug("sensor@running: sensors updated", zap.Int("events", len(msg.Result.Events)))
		}
		if s.actor.stopped {
			return
		}
		s.actor.scheduler.RequestOnce(s.actor.interval, ctx.Self(), sensorTick{})
		s.actor.Become(sensorIdleState{actor: s.actor})
	case sensorTick, domain.ResumeRequest:
	case *actor.Stopping:
		s.actor.stop()
	default:
		s.actor.logger.Debug("sensor@running: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Paused state

type sensorPausedState struct {
	ActorState
	actor *SensorActor
}

func (s sensorPausedState) Name() string {
	return "paused"
}

func (s sensorPausedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		s.actor.health(ctx, false)
	case domain.ResumeRequest:
		s.actor.logger.Info("sensor@paused: resuming")
		s.actor.Become(sensorIdleState{actor: s.actor})
		ctx.Send(ctx.Self(), sensorTick{})
	case sensorTick:
	case *actor.Stopping:
		s.actor.stop()
	default:
		s.actor.logger.Debug("sensor@paused: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}
