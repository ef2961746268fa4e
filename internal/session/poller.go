package session

import (
	"context"
	"log"
	"time"
)

const pollInterval = time.Second

// poller periodically refreshes PositionInfo and PlaybackState for one
// session and publishes a snapshot on the controller's event bus after every
// tick. It never terminates itself on a transport error; only cancellation
// of ctx ends it.
type poller struct {
	controller *Controller
	controlURL string
	log        *log.Logger
}

func (p *poller) run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *poller) tick() {
	if position, err := p.controller.transport.GetPositionInfo(p.controlURL); err != nil {
		p.log.Printf("poll GetPositionInfo: %v", err)
	} else {
		p.controller.commitPosition(position)
	}

	if state, err := p.controller.transport.GetTransportInfo(p.controlURL); err != nil {
		p.log.Printf("poll GetTransportInfo: %v", err)
	} else {
		p.controller.commitPlaybackState(state)
	}

	p.controller.publishSnapshot()
}
