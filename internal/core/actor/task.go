package actor

import (
	"context"
	"time"
)

// taskGraceMargin lets a bounded task observe its own context deadline
// before the background task timeout fires.
const taskGraceMargin = 500 * time.Millisecond

func taskContext(base context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, timeout)
}

func taskGrace(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 0
	}
	return timeout + taskGraceMargin
}
