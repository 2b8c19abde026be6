package racecheck

import (
	"fmt"
	"io"
	"os"
)

// ShowHelp prints usage information for the join race tool.
func ShowHelp() {
	os.Stdout.WriteString(`Courtside Join Race
===================

Races many users for the seats of a single session and verifies that the
service never seats more players than the capacity allows.

Usage:
  go run ./cmd/join-race [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -users int
        Number of users racing for seats (default 200)
  -capacity int
        Session capacity, creator included (default 4)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 10s)
  -secret string
        JWT secret shared with the service (default $COURTSIDE_JWT_SECRET)
  -issuer string
        JWT issuer expected by the service (default $COURTSIDE_JWT_ISSUER)
  -verbose
        Log every join result
  -help
        Show this help message

Examples:
  # Race 500 users for 8 seats
  go run ./cmd/join-race -users 500 -capacity 8
`)
}

// Report writes a human readable summary of stats to w.
func Report(w io.Writer, stats *Stats) {
	fmt.Fprintf(w, `Join race summary
   Session:   %s
   Users:     %d
   Joined:    %d
   Rejected:  %d
   Failed:    %d
   Seated:    %d (%s)
   Duration:  %s
`, stats.SessionID, stats.UsersCreated, stats.Joined, stats.Rejected, stats.Failed,
		stats.Seated, stats.FinalState, stats.Duration)
}
