package racecheck

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/courtside/pkg/logger"
)

const (
	raceSkillLevel  = 3.5
	raceSkillBand   = "intermediate"
	sessionLeadTime = time.Hour
)

// Run registers the users, creates one session and races every user for
// its seats. The returned stats are filled even when verification fails.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Named("racecheck")
	stats := &Stats{StartTime: time.Now()}
	c := newClient(cfg)

	log.Info(ctx, "starting join race",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("capacity", cfg.Capacity),
		logger.Int("workers", cfg.Workers))

	if err := c.expect(ctx, http.StatusOK, http.MethodGet, "/healthz", "", nil, nil); err != nil {
		return stats, fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}

	creator := "creator-" + uuid.NewString()
	users, err := registerUsers(ctx, c, cfg, creator)
	if err != nil {
		return stats, err
	}
	stats.UsersCreated = len(users) + 1

	var sess session
	err = c.expect(ctx, http.StatusCreated, http.MethodPost, "/sessions", creator, sessionRequest{
		Title:           "Join race",
		Type:            "hitting_partner",
		StartsAt:        time.Now().Add(sessionLeadTime).UTC(),
		DurationMinutes: 60,
		Venue:           venue{Name: "Race courts", Address: "1 Load St"},
		SkillBand:       raceSkillBand,
		Capacity:        cfg.Capacity,
	}, &sess)
	if err != nil {
		return stats, fmt.Errorf("create session: %w", err)
	}
	stats.SessionID = sess.ID

	raceJoins(ctx, c, cfg, sess.ID, users, stats)

	var final session
	if err := c.expect(ctx, http.StatusOK, http.MethodGet, "/sessions/"+sess.ID, "", nil, &final); err != nil {
		return stats, fmt.Errorf("read session: %w", err)
	}
	stats.Seated = len(final.Participants)
	stats.FinalState = final.State
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	if err := verify(cfg, stats, final); err != nil {
		log.Error(ctx, "join race failed verification", logger.Error(err))
		return stats, err
	}
	log.Info(ctx, "join race passed",
		logger.String("session_id", sess.ID),
		logger.Int("joined", stats.Joined),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.Duration("took", stats.Duration))
	return stats, nil
}

func registerUsers(ctx context.Context, c *client, cfg *Config, creator string) ([]string, error) {
	if err := c.expect(ctx, http.StatusOK, http.MethodPut, "/users/me", creator,
		userRequest{DisplayName: "Race creator", SkillLevel: raceSkillLevel}, nil); err != nil {
		return nil, fmt.Errorf("register creator: %w", err)
	}
	users := make([]string, cfg.Users)
	for i := range users {
		users[i] = "racer-" + uuid.NewString()
		if err := c.expect(ctx, http.StatusOK, http.MethodPut, "/users/me", users[i],
			userRequest{DisplayName: fmt.Sprintf("Racer %d", i+1), SkillLevel: raceSkillLevel}, nil); err != nil {
			return nil, fmt.Errorf("register user: %w", err)
		}
	}
	return users, nil
}

// raceJoins submits every join concurrently through a worker pool.
func raceJoins(ctx context.Context, c *client, cfg *Config, sessionID string, users []string, stats *Stats) {
	log := logger.Named("racecheck")
	var joined, rejected, failed int64

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	userChan := make(chan string, workers*2)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range userChan {
				status, e, err := c.do(ctx, http.MethodPost, "/sessions/"+sessionID+"/join", u, nil, nil)
				switch {
				case err == nil && status == http.StatusOK:
					atomic.AddInt64(&joined, 1)
				case err == nil && (e.Code == "invalid_state" || e.Code == "session_full"):
					atomic.AddInt64(&rejected, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
				if cfg.Verbose {
					log.Info(ctx, "join", logger.String("user", u), logger.Int("status", status), logger.String("code", e.Code))
				}
			}
		}()
	}

	go func() {
		defer close(userChan)
		for _, u := range users {
			select {
			case <-ctx.Done():
				return
			case userChan <- u:
			}
		}
	}()
	wg.Wait()

	stats.Joined = int(atomic.LoadInt64(&joined))
	stats.Rejected = int(atomic.LoadInt64(&rejected))
	stats.Failed = int(atomic.LoadInt64(&failed))
}
