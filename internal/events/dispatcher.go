package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DispatcherConfig configures the worker pool.
type DispatcherConfig struct {
	Workers      int
	BufferSize   int
	MaxRetries   int
	RetryDelay   time.Duration
	DrainTimeout time.Duration // bounds how long Stop waits for buffered batches
	Logger       *zap.Logger
}

type batch struct {
	events  []Event
	attempt int
}

// Dispatcher publishes event batches in the background with bounded retries,
// so request paths never wait on the broker.
type Dispatcher struct {
	target Publisher

	workers      int
	maxRetries   int
	retryDelay   time.Duration
	drainTimeout time.Duration
	logger       *zap.Logger

	batches  chan batch
	stopping chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	started  bool
	stopped  bool
}

// NewDispatcher wraps target with an asynchronous worker pool.
func NewDispatcher(target Publisher, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 64
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Dispatcher{
		target:       target,
		workers:      cfg.Workers,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		drainTimeout: cfg.DrainTimeout,
		logger:       cfg.Logger,
		batches:      make(chan batch, cfg.BufferSize),
		stopping:     make(chan struct{}),
	}
}

// Start begins worker consumption. Safe to call once. Cancelling ctx does not
// abort publishing; call Stop to flush and shut down.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.ctx, d.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.started = true
	d.logger.Sugar().Infow("event dispatcher started", "workers", d.workers)
}

// Stop rejects new batches, publishes what is already buffered and waits for the
// workers to exit. Publishing is aborted once DrainTimeout elapses. Batches
// waiting out a retry delay are dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started || d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.stopping)
	close(d.batches)
	pending := len(d.batches)
	d.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()

	timer := time.NewTimer(d.drainTimeout)
	defer timer.Stop()
	select {
	case <-drained:
	case <-timer.C:
		d.logger.Sugar().Warnw("event dispatcher drain timed out", "timeout", d.drainTimeout)
		d.cancel()
		<-drained
	}
	d.cancel()
	d.logger.Sugar().Infow("event dispatcher stopped", "buffered_at_stop", pending)
}

// Publish enqueues the events without waiting for delivery. It fails only when the
// dispatcher is not running or its buffer is full.
func (d *Dispatcher) Publish(_ context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	return d.enqueue(batch{events: events})
}

func (d *Dispatcher) enqueue(b batch) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return fmt.Errorf("event dispatcher stopped, dropped %d events", len(b.events))
	}
	if !d.started {
		return fmt.Errorf("event dispatcher not started")
	}

	select {
	case d.batches <- b:
		return nil
	default:
		return fmt.Errorf("event dispatcher buffer full, dropped %d events", len(b.events))
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for b := range d.batches {
		if err := d.target.Publish(d.ctx, b.events...); err != nil {
			d.handleFailure(b, err)
		}
	}
}

func (d *Dispatcher) handleFailure(b batch, err error) {
	b.attempt++
	select {
	case <-d.stopping:
		d.logger.Sugar().Errorw("event batch failed during shutdown", "events", len(b.events), "first_type", b.events[0].Type, "error", err)
		return
	default:
	}
	if b.attempt > d.maxRetries {
		d.logger.Sugar().Errorw("event batch exceeded retries", "events", len(b.events), "first_type", b.events[0].Type, "error", err)
		return
	}
	d.logger.Sugar().Warnw("event batch failed, retrying", "events", len(b.events), "attempt", b.attempt, "error", err)

	go func(retry batch) {
		timer := time.NewTimer(d.retryDelay)
		defer timer.Stop()
		select {
		case <-d.stopping:
			d.logger.Sugar().Warnw("dropping event batch awaiting retry", "events", len(retry.events))
			return
		case <-timer.C:
			if err := d.enqueue(retry); err != nil {
				d.logger.Sugar().Errorw("failed to requeue event batch", "events", len(retry.events), "error", err)
			}
		}
	}(b)
}
