package queues

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
)

type job struct {
	exchange   string
	routingKey string
	payload    []byte
	logLabel   string
}

// AsyncPublisher queues messages for a single background worker, so callers
// never wait on the broker and messages go out in submission order.
type AsyncPublisher struct {
	next    Publisher
	logger  logging.Logger
	timeout time.Duration

	mu     sync.RWMutex
	jobs   chan job
	closed bool
	done   chan struct{}
}

// NewAsyncPublisher starts the worker. Each message gets timeout to reach
// next; a zero timeout means no limit.
func NewAsyncPublisher(next Publisher, size int, timeout time.Duration, logger logging.Logger) *AsyncPublisher {
	if size <= 0 {
		size = 1
	}
	p := &AsyncPublisher{
		next:    next,
		logger:  logger,
		timeout: timeout,
		jobs:    make(chan job, size),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues the message and returns immediately. A full queue is
// reported as common.ErrDispatch.
func (p *AsyncPublisher) Publish(ctx context.Context, exchange, routingKey string, payload []byte, logLabel string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return fmt.Errorf("%w: publisher closed", common.ErrDispatch)
	}

	select {
	case p.jobs <- job{exchange: exchange, routingKey: routingKey, payload: payload, logLabel: logLabel}:
		return nil
	default:
		return fmt.Errorf("%w: queue full", common.ErrDispatch)
	}
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for j := range p.jobs {
		p.send(j)
	}
}

func (p *AsyncPublisher) send(j job) {
	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.next.Publish(ctx, j.exchange, j.routingKey, j.payload, j.logLabel); err != nil {
		p.logger.Error(ctx, "message not delivered", "exchange", j.exchange, "routingKey", j.routingKey, "error", err)
	}
}

// Close stops accepting messages and waits for queued ones to be sent or
// for ctx to end.
func (p *AsyncPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
