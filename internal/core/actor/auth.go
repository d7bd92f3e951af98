package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/ucan2mqtt/internal/core/domain"
	"github.com/berfenger/ucan2mqtt/internal/core/port"
	"github.com/berfenger/ucan2mqtt/internal/metrics"
	. "github.com/berfenger/ucan2mqtt/internal/util/actorutil"
	"github.com/berfenger/ucan2mqtt/pkg/ucancloud"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

var ErrNoCredentials = errors.New("no cloud credentials configured")

// AuthActor serializes sign-in attempts. Requests arriving while an attempt
// is in flight are answered with the result of that attempt.
type AuthActor struct {
	ActorWithStates
	scheduler     *scheduler.TimerScheduler
	client        port.CloudClient
	tokenStore    port.TokenStore
	sign          string
	password      string
	retryInterval time.Duration
	eventStream   *eventstream.EventStream
	metrics       *metrics.Metrics
	waiters       []*actor.PID
	lastError     error

	baseCtx context.Context
	cancel  context.CancelFunc

	taskTimeout time.Duration

	logger *zap.Logger
}

type signInDone struct {
	Result *ucancloud.SignInResult
	Error  error
}

type signInRetry struct {
}

func NewAuthActor(client port.CloudClient, tokenStore port.TokenStore, sign, password string, retryInterval time.Duration,
	eventStream *eventstream.EventStream, m *metrics.Metrics, logger *zap.Logger) *AuthActor {
	act := &AuthActor{
		client:        client,
		tokenStore:    tokenStore,
		sign:          sign,
		password:      password,
		retryInterval: retryInterval,
		eventStream:   eventStream,
		metrics:       m,
		logger:        ActorLogger(domain.ACTOR_ID_AUTH, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(authIdleState{actor: act})
	return act
}

// WithTaskTimeout bounds every sign-in attempt. An attempt that overruns is
// handled as cannot_connect and retried.
func (state *AuthActor) WithTaskTimeout(timeout time.Duration) *AuthActor {
	state.taskTimeout = timeout
	return state
}

func (state *AuthActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

func (state *AuthActor) signIn(ctx actor.Context) {
	client := state.client
	sign, password := state.sign, state.password
	baseCtx := state.baseCtx
	timeout := state.taskTimeout
	NewBackgroundTask(ctx, func() (*signInDone, error) {
		signInCtx, cancel := taskContext(baseCtx, timeout)
		defer cancel()
		res, err := client.SignIn(signInCtx, sign, password)
		return &signInDone{Result: res, Error: err}, nil
	}).Recover(func(err error) signInDone {
		return signInDone{Error: &ucancloud.AuthError{Kind: ucancloud.AuthCannotConnect, Op: "signin", Err: err}}
	}).WithTimeout(taskGrace(timeout)).PipeTo(ctx.Self())
}

func (state *AuthActor) respondAll(ctx actor.Context, resp domain.SignInResponse) {
	for _, pid := range state.waiters {
		if pid != nil {
			ctx.Send(pid, resp)
		}
	}
	state.waiters = nil
}

func (state *AuthActor) health(ctx actor.Context, healthy bool) {
	ctx.Respond(domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_AUTH,
		Healthy: healthy,
		State:   state.StateName(),
	})
}

// Idle state: no attempt in flight

type authIdleState struct {
	ActorState
	actor *AuthActor
}

func (s authIdleState) Name() string {
	return "idle"
}

func (s authIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		s.actor.logger.Debug("auth@idle started")
		s.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		s.actor.baseCtx, s.actor.cancel = context.WithCancel(context.Background())
	case domain.ActorHealthRequest:
		s.actor.health(ctx, true)
	case domain.SignInRequest:
		s.actor.waiters = append(s.actor.waiters, ForRequest(msg).ReplyTo(ctx))
		if s.actor.sign == "" || s.actor.password == "" {
			s.actor.logger.Error("auth@idle: cannot sign in", zap.Error(ErrNoCredentials))
			s.actor.lastError = ErrNoCredentials
			s.actor.respondAll(ctx, domain.SignInResponse{ActorResponseMixIn: domain.ErrorResponse(ErrNoCredentials)})
			s.actor.Become(authFailedState{actor: s.actor})
			return
		}
		s.actor.logger.Info("auth@idle: signing in", zap.String("reason", msg.Reason))
		s.actor.signIn(ctx)
		s.actor.Become(authSigningInState{actor: s.actor})
	case *actor.Stopping:
		if s.actor.cancel != nil {
			s.actor.cancel()
		}
	default:
		s.actor.logger.Debug("auth@idle: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Signing in state: an attempt is in flight or scheduled for retry

type authSigningInState struct {
	ActorState
	actor *AuthActor
}

func (s authSigningInState) Name() string {
	return "signing_in"
}

func (s authSigningInState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		s.actor.health(ctx, true)
	case domain.SignInRequest:
		s.actor.waiters = append(s.actor.waiters, ForRequest(msg).ReplyTo(ctx))
	case signInRetry:
		s.actor.signIn(ctx)
	case signInDone:
		s.actor.metrics.ObserveSignIn(msg.Error)
		switch {
		case msg.Error == nil:
			s.actor.lastError = nil
			if err := s.actor.tokenStore.Save(msg.Result.Token); err != nil {
				s.actor.logger.Warn("auth@signing_in: cannot persist token", zap.Error(err))
			}
			s.actor.logger.Info("auth@signing_in: signed in", zap.String("role", msg.Result.Role.DisplayName()))
			s.actor.respondAll(ctx, domain.SignInResponse{Role: msg.Result.Role})
			s.actor.eventStream.Publish(domain.SessionEstablished{Role: msg.Result.Role})
			s.actor.Become(authIdleState{actor: s.actor})
		case ucancloud.IsCannotConnect(msg.Error):
			s.actor.lastError = msg.Error
			s.actor.logger.Warn("auth@signing_in: cannot connect, retrying",
				zap.Duration("in", s.actor.retryInterval), zap.Error(msg.Error))
			s.actor.scheduler.RequestOnce(s.actor.retryInterval, ctx.Self(), signInRetry{})
		default:
			s.actor.lastError = msg.Error
			s.actor.logger.Error("auth@signing_in: sign in rejected", zap.Error(msg.Error))
			s.actor.respondAll(ctx, domain.SignInResponse{ActorResponseMixIn: domain.ErrorResponse(msg.Error)})
			s.actor.Become(authFailedState{actor: s.actor})
		}
	case *actor.Stopping:
		if s.actor.cancel != nil {
			s.actor.cancel()
		}
	default:
		s.actor.logger.Debug("auth@signing_in: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Failed state: credentials were rejected, retrying would not help

type authFailedState struct {
	ActorState
	actor *AuthActor
}

func (s authFailedState) Name() string {
	return "failed"
}

func (s authFailedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		s.actor.health(ctx, false)
	case domain.SignInRequest:
		ForRequest(msg).Respond(ctx, domain.SignInResponse{ActorResponseMixIn: domain.ErrorResponse(s.actor.lastError)})
	case *actor.Stopping:
		if s.actor.cancel != nil {
			s.actor.cancel()
		}
	default:
		s.actor.logger.Debug("auth@failed: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}
