package worker

import (
	"github.com/okian/courtside/internal/domain/dedupe"
	"github.com/okian/courtside/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithWorkerCount sets the number of delivery goroutines.
func WithWorkerCount(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workerCount = n
		}
	}
}

// WithDeduper sets the deduper used to suppress redelivery.
func WithDeduper(d dedupe.Deduper) Option {
	return func(p *Pool) {
		if d != nil {
			p.deduper = d
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}
