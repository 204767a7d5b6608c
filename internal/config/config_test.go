package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/mimic/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.StoreBackend, convey.ShouldEqual, config.BackendFile)
			convey.So(cfg.StorePath, convey.ShouldEqual, "mouse_events.bin")
			convey.So(cfg.FlushInterval(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.ReplayPause(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.SampleInterval(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.StopTimeout(), convey.ShouldEqual, time.Duration(0))
			convey.So(cfg.MetricsAddr, convey.ShouldBeEmpty)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the retry range converts to durations", func() {
			initial, maxDelay := cfg.PersistRetry()
			convey.So(initial, convey.ShouldEqual, 200*time.Millisecond)
			convey.So(maxDelay, convey.ShouldEqual, 10*time.Second)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	cases := map[string]func(*config.Config){
		"empty store path":   func(c *config.Config) { c.StorePath = "" },
		"unknown backend":    func(c *config.Config) { c.StoreBackend = "redis" },
		"zero flush":         func(c *config.Config) { c.FlushIntervalMS = 0 },
		"negative pause":     func(c *config.Config) { c.ReplayPauseMS = -1 },
		"zero sampling":      func(c *config.Config) { c.SampleIntervalMS = 0 },
		"negative stop":      func(c *config.Config) { c.StopTimeoutMS = -5 },
		"inverted retry":     func(c *config.Config) { c.PersistRetryMaxMS = 10 },
		"zero initial retry": func(c *config.Config) { c.PersistRetryInitialMS = 0 },
	}

	convey.Convey("Given configs with one invalid setting", t, func() {
		for name, mutate := range cases {
			cfg := config.New()
			mutate(cfg)

			convey.Convey("Then "+name+" is rejected", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
