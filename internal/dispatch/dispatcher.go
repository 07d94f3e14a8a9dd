// Package dispatch serializes portal calls through a single worker with
// priority ordering and start-to-start throttling.
package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ainq-io/bitrix24-client/pkg/bitrix24"
)

// Job is one queued unit of work. It runs on the worker goroutine.
type Job func(ctx context.Context) (json.RawMessage, error)

type result struct {
	payload json.RawMessage
	err     error
}

type ticket struct {
	ctx  context.Context
	job  Job
	done chan result
}

// Config wires the dispatcher.
type Config struct {
	// ThrottleInterval is the minimum delay between the starts of two
	// consecutive calls. Zero disables throttling; calls still run one at
	// a time.
	ThrottleInterval time.Duration

	// MaxPriority is the highest usable priority. Submitted priorities are
	// clamped into [0, MaxPriority].
	MaxPriority int

	// Logger receives queue diagnostics. Nil discards them.
	Logger bitrix24.Logger
}

// Dispatcher runs queued jobs one at a time, highest priority first and FIFO
// within a priority. With a throttle interval, consecutive job starts are
// spaced at least that far apart.
type Dispatcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	lanes  [][]*ticket
	closed bool

	maxPriority int
	limiter     *rate.Limiter
	logger      bitrix24.Logger

	closeOnce sync.Once
	workerWG  sync.WaitGroup
}

// NewDispatcher creates a dispatcher and starts its worker.
func NewDispatcher(config *Config) *Dispatcher {
	logger := config.Logger
	if logger == nil {
		logger = bitrix24.NewNoopLogger()
	}

	maxPriority := config.MaxPriority
	if maxPriority < 0 {
		maxPriority = 0
	}

	dispatcher := &Dispatcher{
		lanes:       make([][]*ticket, maxPriority+1),
		maxPriority: maxPriority,
		logger:      logger,
	}
	dispatcher.cond = sync.NewCond(&dispatcher.mu)

	if config.ThrottleInterval > 0 {
		dispatcher.limiter = rate.NewLimiter(rate.Every(config.ThrottleInterval), 1)
	}

	dispatcher.workerWG.Add(1)

	go dispatcher.worker()

	return dispatcher
}

// Submit queues a job and blocks until it completes or ctx is done. A job
// whose context is cancelled while queued never runs.
func (d *Dispatcher) Submit(ctx context.Context, priority int, job Job) (json.RawMessage, error) {
	t := &ticket{
		ctx:  ctx,
		job:  job,
		done: make(chan result, 1),
	}

	err := d.enqueue(priority, t)
	if err != nil {
		return nil, err
	}

	select {
	case res := <-t.done:
		return res.payload, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close rejects queued and future jobs with ErrDispatcherClosed. The job in
// flight, if any, finishes normally.
func (d *Dispatcher) Close() error {
	d.closeOnce.Do(func() {
		d.mu.Lock()

		d.closed = true

		var abandoned []*ticket

		for i := range d.lanes {
			abandoned = append(abandoned, d.lanes[i]...)
			d.lanes[i] = nil
		}

		d.cond.Broadcast()
		d.mu.Unlock()

		if len(abandoned) > 0 {
			d.logger.Debug("rejecting queued calls on close", map[string]interface{}{
				"count": len(abandoned),
			})
		}

		for _, t := range abandoned {
			t.done <- result{err: bitrix24.ErrDispatcherClosed}
		}

		d.workerWG.Wait()
	})

	return nil
}

// QueueLen reports how many jobs are waiting, across all priorities.
func (d *Dispatcher) QueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	total := 0
	for i := range d.lanes {
		total += len(d.lanes[i])
	}

	return total
}

func (d *Dispatcher) enqueue(priority int, t *ticket) error {
	if priority < 0 {
		priority = 0
	}

	if priority > d.maxPriority {
		priority = d.maxPriority
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return bitrix24.ErrDispatcherClosed
	}

	d.lanes[priority] = append(d.lanes[priority], t)
	d.cond.Signal()

	return nil
}

// next blocks until a ticket is available, returning nil once the dispatcher
// is closed.
func (d *Dispatcher) next() *ticket {
	d.mu.Lock()
	defer d.mu.Unlock()

	for {
		for i := d.maxPriority; i >= 0; i-- {
			if len(d.lanes[i]) == 0 {
				continue
			}

			t := d.lanes[i][0]
			d.lanes[i] = d.lanes[i][1:]

			return t
		}

		if d.closed {
			return nil
		}

		d.cond.Wait()
	}
}

func (d *Dispatcher) worker() {
	defer d.workerWG.Done()

	for {
		t := d.next()
		if t == nil {
			return
		}

		// A ticket abandoned while queued must not consume a throttle slot.
		if t.ctx.Err() != nil {
			t.done <- result{err: t.ctx.Err()}

			continue
		}

		if d.limiter != nil {
			err := d.limiter.Wait(t.ctx)
			if err != nil {
				t.done <- result{err: err}

				continue
			}
		}

		payload, err := t.job(t.ctx)
		t.done <- result{payload: payload, err: err}
	}
}
