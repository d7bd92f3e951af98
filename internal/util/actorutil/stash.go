package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

// DefaultStashLimit bounds a Stash with no explicit Limit. When full, the
// oldest message is dropped.
const DefaultStashLimit = 1024

type Stash struct {
	Limit   int
	stash   []stashElem
	dropped int
}

type stashElem struct {
	msg    any
	sender *actor.PID
}

func (stash *Stash) limit() int {
	if stash.Limit > 0 {
		return stash.Limit
	}
	return DefaultStashLimit
}

func (stash *Stash) Stash(ctx actor.Context, msg any) {
	if len(stash.stash) >= stash.limit() {
		stash.stash = stash.stash[1:]
		stash.dropped++
	}
	stash.stash = append(stash.stash, stashElem{
		msg:    msg,
		sender: ctx.Sender(),
	})
}

func (stash *Stash) Len() int {
	return len(stash.stash)
}

// Dropped is the number of messages discarded because the stash was full.
func (stash *Stash) Dropped() int {
	return stash.dropped
}

func (stash *Stash) UnstashAll(ctx actor.Context) {
	for _, elem := range stash.stash {
		ctx.RequestWithCustomSender(ctx.Self(), elem.msg, elem.sender)
	}
	stash.stash = nil
}

func (stash *Stash) UnstashOldest(ctx actor.Context) {
	if len(stash.stash) > 0 {
		first := stash.stash[0]
		ctx.RequestWithCustomSender(ctx.Self(), first.msg, first.sender)
		stash.stash = stash.stash[1:]
	}
}
