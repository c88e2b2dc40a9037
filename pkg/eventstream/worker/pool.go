// Package worker provides an asynchronous worker pool that hands turn events
// to a downstream eventstream.Publisher.
//
// The pool decouples broker writes from the ask path so a slow or
// unreachable broker never delays a reply.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/eventstream"
)

var (
	defaultNumWorkers   uint = 2
	defaultJobQueueSize uint = 256
)

// ErrQueueFull is returned by PublishTurn when the event was dropped.
var ErrQueueFull = errors.New("event queue full")

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher receives every queued event. Close closes it.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	// Events of one conversation stay ordered only with a single worker.
	NumWorkers uint

	// QueueSize is the capacity of the buffered event channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool is an eventstream.Publisher that publishes asynchronously.
type Pool struct {
	config *Config
	queue  chan *eventstream.TurnCompletedEvent
	wg     sync.WaitGroup
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, errors.New("worker pool requires a publisher")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan *eventstream.TurnCompletedEvent, c.QueueSize),
		logger: logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// PublishTurn queues the event and returns without waiting for the
// downstream publisher. A full queue drops the event and returns ErrQueueFull.
func (p *Pool) PublishTurn(_ context.Context, event *eventstream.TurnCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errors.New("worker pool is closed")
	}

	select {
	case p.queue <- event:
		p.logger.Debug("turn event queued",
			zap.String("event_id", event.EventID),
			zap.String("conversation_key", event.Conversation.Key),
		)
		return nil
	default:
		p.logger.Error("turn event not queued, queue full, event dropped",
			zap.String("event_id", event.EventID),
			zap.String("conversation_key", event.Conversation.Key),
		)
		return ErrQueueFull
	}
}

// Close stops accepting events, waits for queued events to drain and then
// closes the downstream publisher.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	return p.config.Publisher.Close()
}

// worker is the inner worker thread that continuously pulls events off the queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("event worker started", zap.Uint("worker_id", id))

	for event := range p.queue {
		p.publish(event)
	}

	p.logger.Debug("event worker stopped", zap.Uint("worker_id", id))
}

func (p *Pool) publish(event *eventstream.TurnCompletedEvent) {
	if err := p.config.Publisher.PublishTurn(context.Background(), event); err != nil {
		p.logger.Error("async turn event publish failed",
			zap.String("event_id", event.EventID),
			zap.String("conversation_key", event.Conversation.Key),
			zap.Int64("turn_id", event.Conversation.TurnID),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("turn event published",
		zap.String("event_id", event.EventID),
		zap.Int64("turn_id", event.Conversation.TurnID),
	)
}
