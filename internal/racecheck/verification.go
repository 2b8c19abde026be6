package racecheck

import "fmt"

// verify checks the race outcome against the capacity invariant.
func verify(cfg *Config, stats *Stats, final session) error {
	if stats.Seated > cfg.Capacity {
		return fmt.Errorf("%w: %d seated, capacity %d", ErrCapacityViolated, stats.Seated, cfg.Capacity)
	}
	if stats.Joined != stats.Seated-1 {
		return fmt.Errorf("%w: %d successful joins but %d joiners seated", ErrCapacityViolated, stats.Joined, stats.Seated-1)
	}
	want := cfg.Capacity
	if cfg.Users+1 < want {
		want = cfg.Users + 1
	}
	if stats.Failed == 0 && stats.Seated != want {
		return fmt.Errorf("%w: %d seated, expected %d", ErrCapacityViolated, stats.Seated, want)
	}
	if stats.Seated == cfg.Capacity && final.State != "full" {
		return fmt.Errorf("%w: session has every seat taken but reads %q", ErrCapacityViolated, final.State)
	}
	seen := map[string]bool{}
	for _, p := range final.Participants {
		if seen[p.UserID] {
			return fmt.Errorf("%w: %s seated twice", ErrCapacityViolated, p.UserID)
		}
		seen[p.UserID] = true
	}
	return nil
}
