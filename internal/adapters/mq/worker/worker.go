// Package worker delivers queued notifications to a Notifier.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/courtside/internal/domain/dedupe"
	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/logger"
	"github.com/okian/courtside/pkg/metrics"
)

const (
	deliveryTimeout     = 5 * time.Second
	poolShutdownTimeout = 30 * time.Second
)

// ErrStopped is returned when Start is called on a stopped pool.
var ErrStopped = errors.New("worker pool stopped")

// Notifier delivers a single notification.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Queue defines how workers receive notifications.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Notification
}

// Pool runs a fixed number of delivery goroutines.
type Pool struct {
	queue       Queue
	notifier    Notifier
	deduper     dedupe.Deduper
	workerCount int
	logger      logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped bool

	delivered atomic.Int64
	failed    atomic.Int64
}

// NewPool creates a pool. It does not start any goroutine.
func NewPool(q Queue, n Notifier, opts ...Option) *Pool {
	p := &Pool{
		queue:       q,
		notifier:    n,
		workerCount: runtime.NumCPU(),
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.deduper == nil {
		p.deduper = dedupe.NewInMemoryDeduper()
	}
	return p
}

// Start launches the workers. They run until Shutdown or until the queue is drained and closed.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	if p.cancel != nil {
		return nil
	}

	// Workers outlive the request that started them; Shutdown cancels.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	items := p.queue.Dequeue(runCtx)

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.run(runCtx, i, items)
	}
	metrics.UpdateWorkerCount(p.workerCount)
	p.logger.Info(ctx, "notification workers started", logger.Int("workers", p.workerCount))
	return nil
}

func (p *Pool) run(ctx context.Context, id int, items <-chan model.Notification) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-items:
			if !ok {
				return
			}
			if err := p.deliver(ctx, n); err != nil {
				p.logger.Warn(ctx, "notification delivery failed",
					logger.Int("worker", id),
					logger.String("notification_id", n.ID),
					logger.Error(err))
			}
		}
	}
}

// deliver sends n at most once per id. A failed delivery is unrecorded so a
// redelivered copy can go through.
func (p *Pool) deliver(ctx context.Context, n model.Notification) error {
	if p.deduper.SeenAndRecord(ctx, n.ID) {
		metrics.RecordNotificationDuplicate()
		return nil
	}

	metrics.AddWorkerActive(1)
	defer metrics.AddWorkerActive(-1)

	start := time.Now()
	dctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()
	err := p.notifier.Notify(dctx, n)
	metrics.RecordWorkerLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		p.deduper.Unrecord(ctx, n.ID)
		p.failed.Add(1)
		metrics.RecordWorkerError()
		return fmt.Errorf("notify %s: %w", n.ID, err)
	}
	p.delivered.Add(1)
	metrics.RecordNotificationSent(string(n.Kind))
	return nil
}

// Delivered returns the number of successfully delivered notifications.
func (p *Pool) Delivered() int64 { return p.delivered.Load() }

// Failed returns the number of failed deliveries.
func (p *Pool) Failed() int64 { return p.failed.Load() }

// Shutdown waits for the workers to drain the queue, then cancels them when ctx expires.
// The caller closes the queue first.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	shutdownCtx, stop := context.WithTimeout(ctx, poolShutdownTimeout)
	defer stop()

	select {
	case <-done:
		metrics.UpdateWorkerCount(0)
		return nil
	case <-shutdownCtx.Done():
		cancel()
		<-done
		p.logger.Warn(ctx, "worker shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
	}
}
