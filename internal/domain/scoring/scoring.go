// Package scoring holds the point rules applied when ledger entries are
// written. Rules is an immutable value: hot reload builds a new one.
package scoring

import (
	"time"

	"github.com/okian/kudos/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Default rule values.
const (
	defaultPaymentPenalty          = -25
	defaultPaymentOverdueThreshold = 7 * 24 * time.Hour
	defaultRankChangeInterval      = 30 * 24 * time.Hour
	defaultReminderLeadTime        = 48 * time.Hour
)

var defaultConversionRate = decimal.RequireFromString("0.5") //nolint:gochecknoglobals // constant decimal

// Gift actions that earn points.
const (
	GiftProposer = "proposer"
	GiftVoter    = "voter"
	GiftWinner   = "winner"
)

// Option applies a configuration option to Rules.
type Option func(*Rules)

// WithConversionRate sets the payment points per currency unit.
func WithConversionRate(rate decimal.Decimal) Option {
	return func(r *Rules) {
		if rate.IsPositive() {
			r.conversionRate = rate
		}
	}
}

// WithPaymentPenalty sets the late payment penalty. Positive values are negated.
func WithPaymentPenalty(points int64) Option {
	return func(r *Rules) {
		if points > 0 {
			points = -points
		}
		r.paymentPenalty = points
	}
}

// WithPaymentOverdueThreshold sets how old a billed transaction must be when
// paid to earn the late payment penalty.
func WithPaymentOverdueThreshold(d time.Duration) Option {
	return func(r *Rules) {
		if d >= 0 {
			r.paymentOverdueThreshold = d
		}
	}
}

// WithRankChangeInterval sets how far back the past scores are taken from.
func WithRankChangeInterval(d time.Duration) Option {
	return func(r *Rules) {
		if d > 0 {
			r.rankChangeInterval = d
		}
	}
}

// WithReminderLeadTime sets how long before the due date a task reminder fires.
func WithReminderLeadTime(d time.Duration) Option {
	return func(r *Rules) {
		if d > 0 {
			r.reminderLeadTime = d
		}
	}
}

// WithRolePoints overrides the points of the given roles.
func WithRolePoints(points map[model.Role]int64) Option {
	return func(r *Rules) {
		for role, p := range points {
			r.rolePoints[role] = p
		}
	}
}

// WithGiftPoints overrides the points of the given gift actions.
func WithGiftPoints(points map[string]int64) Option {
	return func(r *Rules) {
		for action, p := range points {
			r.giftPoints[action] = p
		}
	}
}

// Rules is the immutable point configuration captured by each operation.
type Rules struct {
	conversionRate          decimal.Decimal
	paymentPenalty          int64
	paymentOverdueThreshold time.Duration
	rankChangeInterval      time.Duration
	reminderLeadTime        time.Duration
	rolePoints              map[model.Role]int64
	giftPoints              map[string]int64
}

// NewRules builds Rules from defaults and options.
func NewRules(opts ...Option) *Rules {
	r := &Rules{
		conversionRate:          defaultConversionRate,
		paymentPenalty:          defaultPaymentPenalty,
		paymentOverdueThreshold: defaultPaymentOverdueThreshold,
		rankChangeInterval:      defaultRankChangeInterval,
		reminderLeadTime:        defaultReminderLeadTime,
		rolePoints: map[model.Role]int64{
			model.RoleOrganizer: 20,
			model.RoleAttendee:  10,
			model.RoleManager:   30,
			model.RoleHonouree:  0,
		},
		giftPoints: map[string]int64{
			GiftProposer: 0,
			GiftVoter:    5,
			GiftWinner:   20,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ConversionRate returns the payment points per currency unit.
func (r *Rules) ConversionRate() decimal.Decimal { return r.conversionRate }

// PaymentPenalty returns the (negative) late payment penalty.
func (r *Rules) PaymentPenalty() int64 { return r.paymentPenalty }

// PaymentOverdueThreshold returns the late payment threshold.
func (r *Rules) PaymentOverdueThreshold() time.Duration { return r.paymentOverdueThreshold }

// RankChangeInterval returns the past score look-back.
func (r *Rules) RankChangeInterval() time.Duration { return r.rankChangeInterval }

// ReminderLeadTime returns the task reminder lead time.
func (r *Rules) ReminderLeadTime() time.Duration { return r.reminderLeadTime }

// RolePoints returns the points for a role; unknown roles earn nothing.
func (r *Rules) RolePoints(role model.Role) int64 { return r.rolePoints[role] }

// GiftPoints returns the points for a gift action.
func (r *Rules) GiftPoints(action string) int64 { return r.giftPoints[action] }

// PaymentPoints converts a confirmed amount into points, rounding up.
func (r *Rules) PaymentPoints(amount decimal.Decimal) int64 {
	return amount.Mul(r.conversionRate).Ceil().IntPart()
}

// PaymentOverdue reports whether a transaction created at createdAt and paid
// at paidAt crossed the threshold. Days are counted on calendar dates.
func (r *Rules) PaymentOverdue(createdAt, paidAt time.Time) (int, bool) {
	days := model.DaysBetween(createdAt, paidAt)
	threshold := int(r.paymentOverdueThreshold / (24 * time.Hour))
	return days, days >= threshold
}
