package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	id "mailstead/pkg/domain"
	"mailstead/pkg/requestcontext"
)

// ErrBufferFull is returned by async emission when the buffer cannot
// accept another event; the event is dropped, never blocked on.
var ErrBufferFull = errors.New("audit buffer full")

// Store is the queryable event history the publisher appends to.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByDomain(ctx context.Context, domainID id.DomainID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Sink receives a copy of every stored event, e.g. for streaming export
// to Kafka. Sink failures are logged, never propagated: the store is the
// source of truth and a broken export must not break the write path.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Publisher appends audit events to a store and fans them out to an
// optional sink. By default emission is synchronous; WithAsyncBuffer
// switches to a buffered background writer that drops events when the
// buffer is full and drains on Close.
type Publisher struct {
	store  Store
	sink   Sink
	logger *slog.Logger

	buffer chan Event
	wg     sync.WaitGroup
	once   sync.Once
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithAsyncBuffer enables asynchronous emission with the given buffer
// size. Events are persisted by a background goroutine; Emit never
// blocks on storage.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan Event, size)
		}
	}
}

// WithSink attaches a streaming sink alongside the store.
func WithSink(sink Sink) PublisherOption {
	return func(p *Publisher) {
		p.sink = sink
	}
}

// WithLogger sets the logger for append and sink failures.
func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPublisher constructs a publisher over the given store.
func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records one event. An unset timestamp is stamped with the
// request-scoped time when the context carries one, so every event of
// one request shares a timestamp. The category is always derived from
// the action so callers cannot misclassify events.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	event.Category = AuditEvent(event.Action).Category()

	if p.buffer == nil {
		return p.write(ctx, event)
	}

	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}

// List returns the event history for one domain.
func (p *Publisher) List(ctx context.Context, domainID id.DomainID) ([]Event, error) {
	return p.store.ListByDomain(ctx, domainID)
}

// Close stops the background writer, draining any buffered events first.
// Safe to call on a synchronous publisher and safe to call twice.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	// Buffered events are persisted with a background context: the
	// emitting request may be long gone by the time we get here.
	ctx := context.Background()
	for event := range p.buffer {
		if err := p.write(ctx, event); err != nil {
			p.logger.Error("audit append failed",
				"action", event.Action,
				"domain", event.DomainName,
				"error", err,
			)
		}
	}
}

func (p *Publisher) write(ctx context.Context, event Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	if p.sink != nil {
		if err := p.sink.Publish(ctx, event); err != nil {
			p.logger.Warn("audit sink publish failed",
				"action", event.Action,
				"domain", event.DomainName,
				"error", err,
			)
		}
	}
	return nil
}
