package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/puckcast/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have the training defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.ForestTrees, convey.ShouldEqual, 250)
			convey.So(cfg.ForestMaxDepth, convey.ShouldEqual, 15)
			convey.So(cfg.ForestSeed, convey.ShouldEqual, int64(31))
			convey.So(cfg.ValidationRatio, convey.ShouldEqual, 0.2)
			convey.So(cfg.ExplainTopK, convey.ShouldEqual, 5)
			convey.So(cfg.CompletionPolicy, convey.ShouldEqual, config.CompletionScore)
			convey.So(cfg.HTTPTimeout(), convey.ShouldEqual, 15*time.Second)
			convey.So(cfg.Seasons(), convey.ShouldResemble, []int{20222023, 20232024})
		})

		convey.Convey("Then it should validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with broken invariants", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":       func(c *config.Config) { c.Addr = " " },
			"ratio zero":       func(c *config.Config) { c.ValidationRatio = 0 },
			"ratio one":        func(c *config.Config) { c.ValidationRatio = 1 },
			"no trees":         func(c *config.Config) { c.ForestTrees = 0 },
			"no depth":         func(c *config.Config) { c.ForestMaxDepth = 0 },
			"no top k":         func(c *config.Config) { c.ExplainTopK = 0 },
			"unknown policy":   func(c *config.Config) { c.CompletionPolicy = "vibes" },
			"malformed season": func(c *config.Config) { c.DefaultSeasons = "2022x" },
		}
		for name, mutate := range cases {
			cfg := config.New()
			mutate(cfg)
			err := cfg.Validate()
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			_ = name
		}
	})
}

func TestParseSeasons(t *testing.T) {
	convey.Convey("Given season lists", t, func() {
		s, err := config.ParseSeasons(" 20222023, ,20232024 ")
		convey.So(err, convey.ShouldBeNil)
		convey.So(s, convey.ShouldResemble, []int{20222023, 20232024})

		s, err = config.ParseSeasons("")
		convey.So(err, convey.ShouldBeNil)
		convey.So(s, convey.ShouldBeEmpty)

		_, err = config.ParseSeasons("abc")
		convey.So(err, convey.ShouldNotBeNil)
	})
}
