// Package config defines service configuration and how it is loaded.
package config

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/okian/kudos/internal/domain/model"
	"github.com/okian/kudos/internal/domain/scoring"
	"github.com/okian/kudos/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file, or ":memory:".
	DBPath string `koanf:"db_path"`

	// JobQueueSize bounds the in-memory job queue.
	JobQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of job workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many job run ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// ConversionRate is the payment points earned per currency unit.
	ConversionRate string `koanf:"conversion_rate"`

	// PaymentPenalty is the (negative) late payment penalty.
	PaymentPenalty int64 `koanf:"payment_penalty"`

	PaymentOverdueThresholdDays int `koanf:"payment_overdue_threshold_days"`
	RankChangeIntervalDays      int `koanf:"rank_change_interval_days"`
	ReminderLeadTimeHours       int `koanf:"reminder_lead_time_hours"`

	// RolePoints maps participant roles to the points they earn.
	RolePoints map[string]int64 `koanf:"role_points"`

	// GiftPoints maps gift actions (proposer, voter, winner) to points.
	GiftPoints map[string]int64 `koanf:"gift_points"`

	// MetricsNamespace prefixes every Prometheus metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`

	// MetricsLabels are constant labels (e.g. env) on every metric.
	MetricsLabels map[string]string `koanf:"metrics_labels"`
}

var metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`) //nolint:gochecknoglobals // compiled once

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:                    "info",
		LogFormat:                   "text",
		Addr:                        ":9080",
		DBPath:                      "data/kudos.db",
		JobQueueSize:                128,
		WorkerCount:                 runtime.NumCPU(),
		DedupeSize:                  10_000,
		ConversionRate:              "0.5",
		PaymentPenalty:              -25,
		PaymentOverdueThresholdDays: 7,
		RankChangeIntervalDays:      30,
		ReminderLeadTimeHours:       48,
		RolePoints: map[string]int64{
			string(model.RoleOrganizer): 20,
			string(model.RoleAttendee):  10,
			string(model.RoleManager):   30,
			string(model.RoleHonouree):  0,
		},
		GiftPoints: map[string]int64{
			scoring.GiftProposer: 0,
			scoring.GiftVoter:    5,
			scoring.GiftWinner:   20,
		},
		MetricsNamespace: "kudos",
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.DBPath) == "":
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	case c.JobQueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.DedupeSize <= 0:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.PaymentPenalty > 0:
		return fmt.Errorf("%w: payment_penalty must not be positive", ErrInvalidConfig)
	case c.PaymentOverdueThresholdDays <= 0:
		return fmt.Errorf("%w: payment_overdue_threshold_days must be positive", ErrInvalidConfig)
	case c.RankChangeIntervalDays <= 0:
		return fmt.Errorf("%w: rank_change_interval_days must be positive", ErrInvalidConfig)
	case c.ReminderLeadTimeHours <= 0:
		return fmt.Errorf("%w: reminder_lead_time_hours must be positive", ErrInvalidConfig)
	case !metricName.MatchString(c.MetricsNamespace):
		return fmt.Errorf("%w: metrics_namespace %q is not a valid metric name", ErrInvalidConfig, c.MetricsNamespace)
	}
	for name := range c.MetricsLabels {
		if !metricName.MatchString(name) || strings.HasPrefix(name, "__") {
			return fmt.Errorf("%w: metrics_labels: invalid label name %q", ErrInvalidConfig, name)
		}
	}

	rate, err := decimal.NewFromString(c.ConversionRate)
	if err != nil {
		return fmt.Errorf("%w: %w: conversion_rate: %v", ErrInvalidConfig, ErrInvalidRules, err)
	}
	if rate.IsNegative() {
		return fmt.Errorf("%w: %w: conversion_rate must not be negative", ErrInvalidConfig, ErrInvalidRules)
	}
	for role, p := range c.RolePoints {
		if _, err := model.ParseRole(role); err != nil {
			return fmt.Errorf("%w: %w: role_points: %v", ErrInvalidConfig, ErrInvalidRules, err)
		}
		if p < 0 {
			return fmt.Errorf("%w: %w: role_points[%s] must not be negative", ErrInvalidConfig, ErrInvalidRules, role)
		}
	}
	for action, p := range c.GiftPoints {
		switch action {
		case scoring.GiftProposer, scoring.GiftVoter, scoring.GiftWinner:
		default:
			return fmt.Errorf("%w: %w: gift_points: unknown action %q", ErrInvalidConfig, ErrInvalidRules, action)
		}
		if p < 0 {
			return fmt.Errorf("%w: %w: gift_points[%s] must not be negative", ErrInvalidConfig, ErrInvalidRules, action)
		}
	}
	return nil
}

// Rules builds the scoring rules described by c. Call Validate first.
func (c *Config) Rules() *scoring.Rules {
	roles := make(map[model.Role]int64, len(c.RolePoints))
	for role, p := range c.RolePoints {
		roles[model.Role(strings.ToLower(role))] = p
	}
	opts := []scoring.Option{
		scoring.WithPaymentPenalty(c.PaymentPenalty),
		scoring.WithPaymentOverdueThreshold(time.Duration(c.PaymentOverdueThresholdDays) * 24 * time.Hour),
		scoring.WithRankChangeInterval(time.Duration(c.RankChangeIntervalDays) * 24 * time.Hour),
		scoring.WithReminderLeadTime(time.Duration(c.ReminderLeadTimeHours) * time.Hour),
		scoring.WithRolePoints(roles),
		scoring.WithGiftPoints(c.GiftPoints),
	}
	if rate, err := decimal.NewFromString(c.ConversionRate); err == nil {
		opts = append(opts, scoring.WithConversionRate(rate))
	}
	return scoring.NewRules(opts...)
}

// MetricsOptions returns the metrics manager options described by c.
func (c *Config) MetricsOptions() []metrics.Option {
	return []metrics.Option{
		metrics.WithNamespace(c.MetricsNamespace),
		metrics.WithConstLabels(c.MetricsLabels),
	}
}
