package config_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/courtside/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.KFactor, convey.ShouldEqual, 32)
			convey.So(cfg.RatingFloor, convey.ShouldEqual, 100)
			convey.So(cfg.DefaultElo, convey.ShouldEqual, 1200)
			convey.So(cfg.SkillMin, convey.ShouldEqual, 1.0)
			convey.So(cfg.SkillMax, convey.ShouldEqual, 7.0)
			convey.So(cfg.MaxAttempts, convey.ShouldEqual, 8)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then origins are split and trimmed", func() {
			cfg.CORSOrigins = "https://a.example, https://b.example,,"
			convey.So(cfg.Origins(), convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid configs", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":        func(c *config.Config) { c.Addr = "" },
			"unknown store":     func(c *config.Config) { c.Store = "redis" },
			"zero k":            func(c *config.Config) { c.KFactor = 0 },
			"elo below floor":   func(c *config.Config) { c.DefaultElo = 50 },
			"inverted skill":    func(c *config.Config) { c.SkillMin = 6; c.SkillMax = 2 },
			"no attempts":       func(c *config.Config) { c.MaxAttempts = 0 },
			"no notify workers": func(c *config.Config) { c.NotifyWorkers = 0 },
		}
		for name, mutate := range cases {
			cfg := config.New(context.Background())
			mutate(cfg)
			err := cfg.Validate()
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			_ = name
		}
	})
}
