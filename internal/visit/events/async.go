package events

import (
	"context"
	"log/slog"
	"time"
)

const defaultPublishTimeout = 5 * time.Second

// AsyncPublisher decouples the request path from the broker. Events go into
// a bounded inbox that Run drains; when the inbox is full the event is
// dropped and counted rather than blocking a visit.
type AsyncPublisher struct {
	next    Publisher
	inbox   chan VisitRecorded
	logger  *slog.Logger
	onDrop  func()
	timeout time.Duration
}

type AsyncOption func(*AsyncPublisher)

func WithLogger(logger *slog.Logger) AsyncOption {
	return func(p *AsyncPublisher) { p.logger = logger }
}

// WithOnDrop registers a callback for dropped or failed events.
func WithOnDrop(fn func()) AsyncOption {
	return func(p *AsyncPublisher) { p.onDrop = fn }
}

func NewAsyncPublisher(next Publisher, buffer int, opts ...AsyncOption) *AsyncPublisher {
	if buffer <= 0 {
		buffer = 1024
	}
	p := &AsyncPublisher{
		next:    next,
		inbox:   make(chan VisitRecorded, buffer),
		logger:  slog.Default(),
		onDrop:  func() {},
		timeout: defaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishVisitRecorded enqueues without blocking.
func (p *AsyncPublisher) PublishVisitRecorded(ctx context.Context, event VisitRecorded) error {
	select {
	case p.inbox <- event:
	default:
		p.onDrop()
		p.logger.WarnContext(ctx, "visit event inbox full, dropping event", "visit_id", event.VisitID)
	}
	return nil
}

// Run forwards queued events until ctx is done, then flushes what is left.
func (p *AsyncPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return nil
		case event := <-p.inbox:
			p.forward(context.WithoutCancel(ctx), event)
		}
	}
}

func (p *AsyncPublisher) drain() {
	for {
		select {
		case event := <-p.inbox:
			p.forward(context.Background(), event)
		default:
			return
		}
	}
}

func (p *AsyncPublisher) forward(ctx context.Context, event VisitRecorded) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.next.PublishVisitRecorded(ctx, event); err != nil {
		p.onDrop()
		p.logger.ErrorContext(ctx, "failed to publish visit event",
			"visit_id", event.VisitID,
			"error", err,
		)
	}
}

func (p *AsyncPublisher) Close() error {
	return p.next.Close()
}
