package service

import (
	"context"
	"time"

	"github.com/berfenger/ucan2mqtt/pkg/ucancloud"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"

	"go.uber.org/zap"
)

const tokenWatchJobName = "token_expiry_watch"

// TokenWatch periodically checks whether the session token is about to
// expire and calls OnExpiring when it is. Only JWT-shaped tokens expire.
type TokenWatch struct {
	Token      func() string
	OnExpiring func()
	Interval   time.Duration
	Margin     time.Duration
	Now        func() time.Time
	Logger     *zap.Logger

	scheduler quartz.Scheduler
}

func NewTokenWatch(token func() string, onExpiring func(), interval, margin time.Duration, logger *zap.Logger) *TokenWatch {
	return &TokenWatch{
		Token:      token,
		OnExpiring: onExpiring,
		Interval:   interval,
		Margin:     margin,
		Now:        time.Now,
		Logger:     logger,
	}
}

// Check runs a single expiry check and reports whether OnExpiring was called.
func (w *TokenWatch) Check() bool {
	if !ucancloud.TokenExpiresWithin(w.Token(), w.Now(), w.Margin) {
		return false
	}
	w.Logger.Info("token_watch: session token expires soon, requesting sign in")
	w.OnExpiring()
	return true
}

func (w *TokenWatch) Start(ctx context.Context) error {
	sched := quartz.NewStdScheduler()
	w.scheduler = sched
	sched.Start(ctx)

	checkJob := job.NewFunctionJob(func(_ context.Context) (bool, error) {
		return w.Check(), nil
	})
	return sched.ScheduleJob(
		quartz.NewJobDetail(checkJob, quartz.NewJobKey(tokenWatchJobName)),
		quartz.NewSimpleTrigger(w.Interval),
	)
}

func (w *TokenWatch) Stop() {
	if w.scheduler == nil {
		return
	}
	w.scheduler.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.scheduler.Wait(ctx)
	w.scheduler = nil
}
