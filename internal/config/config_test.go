package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/kudos/internal/config"
	"github.com/okian/kudos/internal/domain/model"
	"github.com/okian/kudos/internal/domain/scoring"
	"github.com/okian/kudos/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.DBPath, convey.ShouldEqual, "data/kudos.db")
			convey.So(cfg.JobQueueSize, convey.ShouldEqual, 128)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.PaymentPenalty, convey.ShouldEqual, -25)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then its rules match the scoring defaults", func() {
			rules := cfg.Rules()
			defaults := scoring.NewRules()
			convey.So(rules.ConversionRate().Equal(defaults.ConversionRate()), convey.ShouldBeTrue)
			convey.So(rules.PaymentOverdueThreshold(), convey.ShouldEqual, defaults.PaymentOverdueThreshold())
			convey.So(rules.RankChangeInterval(), convey.ShouldEqual, defaults.RankChangeInterval())
			convey.So(rules.ReminderLeadTime(), convey.ShouldEqual, defaults.ReminderLeadTime())
			convey.So(rules.RolePoints(model.RoleManager), convey.ShouldEqual, 30)
			convey.So(rules.GiftPoints(scoring.GiftWinner), convey.ShouldEqual, 20)
		})
	})
}

func TestConfig_Rules(t *testing.T) {
	convey.Convey("Given overridden point settings", t, func() {
		cfg := config.New()
		cfg.ConversionRate = "2"
		cfg.PaymentOverdueThresholdDays = 3
		cfg.ReminderLeadTimeHours = 12
		cfg.RolePoints = map[string]int64{"Organizer": 50}

		rules := cfg.Rules()

		convey.Convey("Then the rules carry them", func() {
			convey.So(rules.PaymentPoints(decimal.RequireFromString("10.10")), convey.ShouldEqual, 21)
			convey.So(rules.PaymentOverdueThreshold(), convey.ShouldEqual, 72*time.Hour)
			convey.So(rules.ReminderLeadTime(), convey.ShouldEqual, 12*time.Hour)
			convey.So(rules.RolePoints(model.RoleOrganizer), convey.ShouldEqual, 50)
			convey.So(rules.RolePoints(model.RoleAttendee), convey.ShouldEqual, 10)
		})
	})
}

func TestConfig_MetricsOptions(t *testing.T) {
	convey.Convey("Given a metrics namespace and constant labels", t, func() {
		cfg := config.New()
		cfg.MetricsNamespace = "acme"
		cfg.MetricsLabels = map[string]string{"env": "prod"}
		convey.So(cfg.Validate(), convey.ShouldBeNil)

		reg := prometheus.NewRegistry()
		metrics.NewManager(append(cfg.MetricsOptions(), metrics.WithPrometheusRegistry(reg))...)

		convey.Convey("Then collectors carry both", func() {
			mfs, err := reg.Gather()
			convey.So(err, convey.ShouldBeNil)
			found := false
			for _, mf := range mfs {
				if mf.GetName() != "acme_ledger_queue_size" {
					continue
				}
				found = true
				labels := mf.GetMetric()[0].GetLabel()
				convey.So(labels, convey.ShouldHaveLength, 1)
				convey.So(labels[0].GetName(), convey.ShouldEqual, "env")
				convey.So(labels[0].GetValue(), convey.ShouldEqual, "prod")
			}
			convey.So(found, convey.ShouldBeTrue)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid settings", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
			rules  bool
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }, false},
			{"empty db path", func(c *config.Config) { c.DBPath = " " }, false},
			{"zero workers", func(c *config.Config) { c.WorkerCount = 0 }, false},
			{"positive penalty", func(c *config.Config) { c.PaymentPenalty = 5 }, false},
			{"bad rate", func(c *config.Config) { c.ConversionRate = "half" }, true},
			{"negative rate", func(c *config.Config) { c.ConversionRate = "-1" }, true},
			{"unknown role", func(c *config.Config) { c.RolePoints = map[string]int64{"guest": 1} }, true},
			{"unknown gift", func(c *config.Config) { c.GiftPoints = map[string]int64{"wrapper": 1} }, true},
			{"negative gift", func(c *config.Config) { c.GiftPoints = map[string]int64{scoring.GiftVoter: -1} }, true},
			{"zero rank interval", func(c *config.Config) { c.RankChangeIntervalDays = 0 }, false},
			{"dashed metrics namespace", func(c *config.Config) { c.MetricsNamespace = "kudos-ledger" }, false},
			{"reserved metrics label", func(c *config.Config) { c.MetricsLabels = map[string]string{"__env": "prod"} }, false},
		}

		for _, tc := range cases {
			cfg := config.New()
			tc.mutate(cfg)

			convey.Convey("Then "+tc.name+" is rejected", func() {
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(errors.Is(err, config.ErrInvalidRules), convey.ShouldEqual, tc.rules)
			})
		}
	})
}
