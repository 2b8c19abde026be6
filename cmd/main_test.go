package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/courtside/internal/config"
	"github.com/okian/courtside/pkg/logger"
)

func testConfig() *config.Config {
	cfg := config.New(context.Background())
	cfg.JWTSecret = "test-secret"
	cfg.NotifyWorkers = 2
	return cfg
}

func TestConfigFromEnvironment(t *testing.T) {
	convey.Convey("Given environment overrides", t, func() {
		_ = os.Setenv("COURTSIDE_ADDR", ":8080")
		_ = os.Setenv("COURTSIDE_NOTIFY_QUEUE_SIZE", "1000")
		_ = os.Setenv("COURTSIDE_NOTIFY_WORKERS", "4")
		defer func() {
			_ = os.Unsetenv("COURTSIDE_ADDR")
			_ = os.Unsetenv("COURTSIDE_NOTIFY_QUEUE_SIZE")
			_ = os.Unsetenv("COURTSIDE_NOTIFY_WORKERS")
		}()

		convey.Convey("Then configuration should be loadable", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.NotifyQueueSize, convey.ShouldEqual, 1000)
			convey.So(cfg.NotifyWorkers, convey.ShouldEqual, 4)
		})
	})
}

func TestBuild(t *testing.T) {
	convey.Convey("Given a memory-backed configuration", t, func() {
		ctx := context.Background()
		cfg := testConfig()

		convey.Convey("When the server is built", func() {
			svc, srv, err := build(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer func() { _ = svc.Stop(ctx) }()

			convey.Convey("Then health, docs and API routes are served", func() {
				for _, path := range []string{"/healthz", "/openapi.yaml", "/api-docs", "/leaderboard", "/sessions"} {
					w := httptest.NewRecorder()
					srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
					convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				}
			})

			convey.Convey("Then writes require a token", func() {
				w := httptest.NewRecorder()
				srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sessions", http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusUnauthorized)
			})

			convey.Convey("Then the metric updaters run without panicking", func() {
				convey.So(updateSystemMetrics, convey.ShouldNotPanic)
				convey.So(func() { updateServiceMetrics(ctx, svc) }, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When no JWT secret is configured", func() {
			cfg.JWTSecret = ""
			_, _, err := build(ctx, cfg, logger.Nop())
			convey.So(errors.Is(err, ErrMissingSecret), convey.ShouldBeTrue)
		})

		convey.Convey("When the store is unknown", func() {
			cfg.Store = "cassandra"
			_, _, err := build(ctx, cfg, logger.Nop())
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a sqlite-backed configuration", t, func() {
		ctx := context.Background()
		cfg := testConfig()
		cfg.Store = config.StoreSQLite
		cfg.SQLiteDSN = filepath.Join(t.TempDir(), "courtside.db")

		svc, srv, err := build(ctx, cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)

		convey.Convey("Then /healthz pings the database", func() {
			w := httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)

			convey.So(svc.Stop(ctx), convey.ShouldBeNil)
			w = httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a configuration on an ephemeral port", t, func() {
		cfg := testConfig()
		cfg.Addr = "127.0.0.1:0"
		ctx, cancel := context.WithCancel(context.Background())

		convey.Convey("When the context is cancelled", func() {
			done := make(chan error, 1)
			go func() { done <- run(ctx, cfg, logger.Nop()) }()
			time.Sleep(100 * time.Millisecond)
			cancel()

			convey.Convey("Then run shuts down cleanly", func() {
				select {
				case err := <-done:
					convey.So(err, convey.ShouldBeNil)
				case <-time.After(10 * time.Second):
					convey.So("run did not return", convey.ShouldBeEmpty)
				}
			})
		})
	})
}
