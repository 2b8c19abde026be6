package service

import (
	"time"

	"github.com/okian/courtside/internal/adapters/mq/worker"
	"github.com/okian/courtside/internal/domain/eligibility"
	"github.com/okian/courtside/internal/domain/rating"
	"github.com/okian/courtside/internal/domain/retry"
	"github.com/okian/courtside/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of notification workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the notification queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many notification ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNotifier sets the delivery target of the notification workers.
func WithNotifier(n worker.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithDispatcher replaces the queue-backed dispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) {
		if d != nil {
			s.dispatcher = d
		}
	}
}

// WithRetryPolicy sets the retry policy for store conflicts and outages.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Service) {
		if p.MaxAttempts > 0 {
			s.policy = p
		}
	}
}

// WithSkillBounds sets the global skill level range.
func WithSkillBounds(b eligibility.Bounds) Option {
	return func(s *Service) {
		if b.Min <= b.Max {
			s.bounds = b
		}
	}
}

// WithRatingModel sets the Elo model.
func WithRatingModel(m *rating.Model) Option {
	return func(s *Service) {
		if m != nil {
			s.ratingModel = m
		}
	}
}

// WithDefaultElo sets the rating assigned to new users.
func WithDefaultElo(elo int) Option {
	return func(s *Service) {
		if elo > 0 {
			s.defaultElo = elo
		}
	}
}

// WithMaxListLimit caps list and history page sizes.
func WithMaxListLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxList = n
		}
	}
}

// WithMaxLeaderboard caps the leaderboard size.
func WithMaxLeaderboard(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLeaderboard = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}
