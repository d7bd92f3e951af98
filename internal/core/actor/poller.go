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

type PollerActor struct {
	ActorWithStates
	scheduler   *scheduler.TimerScheduler
	stash       *Stash
	poller      *service.Poller
	interval    time.Duration
	eventStream *eventstream.EventStream
	metrics     *metrics.Metrics
	startPaused bool

	// cancels in-flight cloud calls when the actor stops
	baseCtx context.Context
	cancel  context.CancelFunc
	stopped bool

	taskTimeout time.Duration

	logger *zap.Logger
}

type pollTick struct {
}

type pollTickDone struct {
	Result service.PollTickResult
	Error  error
}

func NewPollerActor(poller *service.Poller, interval time.Duration, startPaused bool, eventStream *eventstream.EventStream, m *metrics.Metrics, logger *zap.Logger) *PollerActor {
	act := &PollerActor{
		poller:      poller,
		interval:    interval,
		startPaused: startPaused,
		eventStream: eventStream,
		metrics:     m,
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_POLLER, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(pollerStartingState{actor: act})
	return act
}

// WithTaskTimeout bounds every tick. A tick that overruns is reported as a
// failed tick and the next one is scheduled.
func (state *PollerActor) WithTaskTimeout(timeout time.Duration) *PollerActor {
	state.taskTimeout = timeout
	return state
}

func (state *PollerActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

func (state *PollerActor) health(ctx actor.Context, healthy bool) {
	ctx.Respond(domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_POLLER,
		Healthy: healthy,
		State:   state.StateName(),
	})
}

func (state *PollerActor) stop() {
	state.stopped = true
	if state.cancel != nil {
		state.cancel()
	}
}

// Starting state

type pollerStartingState struct {
	ActorState
	actor *PollerActor
}

func (s pollerStartingState) Name() string {
	return "starting"
}

func (s pollerStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		s.actor.logger.Debug("poller@starting started")
		s.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		s.actor.baseCtx, s.actor.cancel = context.WithCancel(context.Background())
		if s.actor.startPaused {
			s.actor.Become(pollerPausedState{actor: s.actor})
		} else {
			s.actor.Become(pollerIdleState{actor: s.actor})
			ctx.Send(ctx.Self(), pollTick{})
		}
		s.actor.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		s.actor.logger.Debug("poller@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		s.actor.stash.Stash(ctx, msg)
	}
}

// Idle state: waiting for the next tick

type pollerIdleState struct {
	ActorState
	actor *PollerActor
}

func (s pollerIdleState) Name() string {
	return "idle"
}

func (s pollerIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		s.actor.health(ctx, true)
	case pollTick:
		if s.actor.stopped {
			return
		}
		s.actor.runTick(ctx)
		s.actor.Become(pollerRunningState{actor: s.actor})
	case domain.ResumeRequest:
		// already running
	case *actor.Stopping:
		s.actor.stop()
	default:
		s.actor.logger.Debug("poller@idle: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Running state: a tick is in flight

type pollerRunningState struct {
	ActorState
	actor *PollerActor
}

func (s pollerRunningState) Name() string {
	return "running"
}

func (s pollerRunningState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		s.actor.health(ctx, true)
	case pollTickDone:
		s.actor.metrics.ObservePollTick()
		if msg.Result.ListRefreshed {
			s.actor.eventStream.Publish(domain.DeviceListUpdated{Devices: msg.Result.Devices})
		}
		if msg.Error != nil {
			s.actor.metrics.ObserveError(msg.Error)
			if ucancloud.IsAuthError(msg.Error) {
				s.actor.logger.Warn("poller@running: authentication error, pausing", zap.Error(msg.Error))
				ctx.Send(ctx.Parent(), domain.ReauthRequest{From: domain.ACTOR_ID_POLLER, Error: msg.Error})
				s.actor.Become(pollerPausedState{actor: s.actor})
				return
			}
			s.actor.logger.Error("poller@running: tick failed", zap.Uint64("tick", msg.Result.Tick), zap.Error(msg.Error))
		} else {
			s.actor.logger.Debug("poller@running: tick done", zap.Uint64("tick", msg.Result.Tick),
				zap.Bool("list", msg.Result.ListRefreshed), zap.Bool("device", msg.Result.DeviceRefreshed))
		}
		if s.actor.stopped {
			return
		}
		// the next tick starts only after this one completed
		s.actor.scheduler.RequestOnce(s.actor.interval, ctx.Self(), pollTick{})
		s.actor.Become(pollerIdleState{actor: s.actor})
	case pollTick, domain.ResumeRequest:
	case *actor.Stopping:
		s.actor.stop()
	default:
		s.actor.logger.Debug("poller@running: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Paused state: waiting for a new session

type pollerPausedState struct {
	ActorState
	actor *PollerActor
}

func (s pollerPausedState) Name() string {
	return "paused"
}

func (s pollerPausedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		s.actor.health(ctx, false)
	case domain.ResumeRequest:
		s.actor.logger.Info("poller@paused: resuming", zap.Uint64("tick", s.actor.poller.Counter()))
		s.actor.Become(pollerIdleState{actor: s.actor})
		ctx.Send(ctx.Self(), pollTick{})
	case pollTick:
	case *actor.Stopping:
		s.actor.stop()
	default:
		s.actor.logger.Debug("poller@paused: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *PollerActor) runTick(ctx actor.Context) {
	poller := state.poller
	baseCtx := state.baseCtx
	timeout := state.taskTimeout
	NewBackgroundTask(ctx, func() (*pollTickDone, error) {
		tickCtx, cancel := taskContext(baseCtx, timeout)
		defer cancel()
		res, err := poller.Tick(tickCtx)
		return &pollTickDone{Result: res, Error: err}, nil
	}).Recover(func(err error) pollTickDone {
		return pollTickDone{Error: err}
	}).WithTimeout(taskGrace(timeout)).PipeTo(ctx.Self())
}
