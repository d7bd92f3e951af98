package actor

import (
	"github.com/berfenger/ucan2mqtt/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
)

// probeParent spawns a single child and records what the child sends to it.
type probeParent struct {
	producer actor.Producer
	child    chan *actor.PID
	received chan any
}

func newProbeParent(producer actor.Producer) *probeParent {
	return &probeParent{
		producer: producer,
		child:    make(chan *actor.PID, 1),
		received: make(chan any, 16),
	}
}

func (p *probeParent) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		p.child <- ctx.Spawn(actor.PropsFromProducer(p.producer))
	case domain.ReauthRequest, domain.SignInResponse:
		p.received <- msg
	}
}
