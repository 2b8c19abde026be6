package booking

import (
	"time"

	"github.com/okian/courtside/internal/domain/eligibility"
	"github.com/okian/courtside/internal/domain/retry"
	"github.com/okian/courtside/pkg/logger"
)

// Option configures an Engine.
type Option func(*Engine)

// WithRetryPolicy bounds retries on store conflict or outage.
func WithRetryPolicy(p retry.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithSkillBounds sets the global skill scale sessions must fit in.
func WithSkillBounds(b eligibility.Bounds) Option {
	return func(e *Engine) {
		if b.Min <= b.Max {
			e.bounds = b
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// WithMaxListLimit caps ListSessions results.
func WithMaxListLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxList = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}
