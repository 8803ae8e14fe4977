package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
	defaultTimeout   = 10 * time.Second
)

const (
	attemptRunning int32 = iota
	attemptFinished
	attemptAbandoned
)

// Options tunes a Dispatcher. Zero values fall back to defaults.
type Options struct {
	Workers     int
	QueueSize   int
	Timeout     time.Duration
	FrontendURL string
}

// Stats counts notices by outcome. Abandoned is the number of timed out
// senders that have not returned yet.
type Stats struct {
	Queued    uint64
	Delivered uint64
	Failed    uint64
	Dropped   uint64
	Abandoned int64
}

// Dispatcher delivers notices on a fixed pool of workers fed by a bounded queue.
// Each notice gets exactly one attempt; a failed or panicking job never affects the others.
type Dispatcher struct {
	sender      Sender
	logger      *zerolog.Logger
	timeout     time.Duration
	frontendURL string

	mu     sync.RWMutex
	closed bool
	jobs   chan Notice
	wg     sync.WaitGroup

	queued    atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
	abandoned atomic.Int64
}

// NewDispatcher starts the worker pool.
func NewDispatcher(sender Sender, opts Options, logger *zerolog.Logger) *Dispatcher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	d := &Dispatcher{
		sender:      sender,
		logger:      logger,
		timeout:     opts.Timeout,
		frontendURL: opts.FrontendURL,
		jobs:        make(chan Notice, opts.QueueSize),
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	return d
}

// Enqueue schedules a notice without blocking.
func (d *Dispatcher) Enqueue(n Notice) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}
	select {
	case d.jobs <- n:
		d.queued.Add(1)
		return nil
	default:
		d.dropped.Add(1)
		return ErrQueueFull
	}
}

// Notify makes a single delivery attempt bounded by the dispatcher timeout.
// A sender that outlives the timeout is abandoned but keeps running until it
// returns, so a sender that ignores ctx can hold more connections open than
// there are workers. Such senders are counted in Stats.Abandoned while they run.
func (d *Dispatcher) Notify(ctx context.Context, to, subject, body string) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var state atomic.Int32
	done := make(chan error, 1)
	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("sender panic: %v", r)
			}
			if !state.CompareAndSwap(attemptRunning, attemptFinished) {
				d.abandoned.Add(-1)
			}
			done <- err
		}()
		err = d.sender.Send(ctx, to, subject, body)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		if state.CompareAndSwap(attemptRunning, attemptAbandoned) {
			d.abandoned.Add(1)
			return &DeliveryError{To: to, Err: ctx.Err()}
		}
		err = <-done
	}
	if err != nil {
		return &DeliveryError{To: to, Err: err}
	}
	return nil
}

// Close stops accepting notices, drains the queue and waits for the workers.
// It returns ctx.Err() if the workers do not finish in time.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Queued:    d.queued.Load(),
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
		Abandoned: d.abandoned.Load(),
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for n := range d.jobs {
		d.deliver(id, n)
	}
}

func (d *Dispatcher) deliver(worker int, n Notice) {
	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			d.logger.Error().
				Int("worker", worker).
				Str("to", n.Email).
				Interface("panic", r).
				Msg("notification job panicked")
		}
	}()

	subject, body := Compose(n, d.frontendURL)
	err := d.Notify(context.Background(), n.Email, subject, body)
	if err != nil {
		d.failed.Add(1)
		event := d.logger.Warn()
		var de *DeliveryError
		if errors.As(err, &de) && errors.Is(de.Err, context.DeadlineExceeded) {
			event = event.Bool("timeout", true)
		}
		event.Err(err).
			Str("to", n.Email).
			Str("recipient", n.Recipient).
			Str("room", n.RoomID).
			Msg("notification delivery failed")
		return
	}

	d.delivered.Add(1)
	d.logger.Debug().
		Str("to", n.Email).
		Str("room", n.RoomID).
		Msg("notification delivered")
}
