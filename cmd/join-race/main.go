package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/courtside/internal/racecheck"
	"github.com/okian/courtside/pkg/logger"
)

// Default configuration constants.
const (
	defaultUsers       = 200
	defaultCapacity    = 4
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 10 * time.Second
	defaultTestTimeout = 5 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		users    = flag.Int("users", defaultUsers, "Number of users racing for seats")
		capacity = flag.Int("capacity", defaultCapacity, "Session capacity, creator included")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		secret   = flag.String("secret", os.Getenv("COURTSIDE_JWT_SECRET"), "JWT secret shared with the service")
		issuer   = flag.String("issuer", os.Getenv("COURTSIDE_JWT_ISSUER"), "JWT issuer expected by the service")
		verbose  = flag.Bool("verbose", false, "Log every join result")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		racecheck.ShowHelp()
		return
	}
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	stats, err := racecheck.Run(ctx, &racecheck.Config{
		BaseURL:  *baseURL,
		Users:    *users,
		Capacity: *capacity,
		Workers:  *workers,
		Timeout:  *timeout,
		Secret:   *secret,
		Issuer:   *issuer,
		Verbose:  *verbose,
	})
	if stats != nil {
		racecheck.Report(os.Stdout, stats)
	}
	if err != nil {
		os.Stderr.WriteString("join race failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
