package scoring_test

import (
	"testing"
	"time"

	"github.com/okian/kudos/internal/domain/model"
	scoring "github.com/okian/kudos/internal/domain/scoring"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRulesDefaults(t *testing.T) {
	Convey("Given default rules", t, func() {
		r := scoring.NewRules()

		Convey("Then the configured defaults apply", func() {
			So(r.ConversionRate().String(), ShouldEqual, "0.5")
			So(r.PaymentPenalty(), ShouldEqual, -25)
			So(r.PaymentOverdueThreshold(), ShouldEqual, 7*24*time.Hour)
			So(r.RankChangeInterval(), ShouldEqual, 30*24*time.Hour)
			So(r.ReminderLeadTime(), ShouldEqual, 48*time.Hour)
			So(r.RolePoints(model.RoleManager), ShouldEqual, 30)
			So(r.RolePoints(model.RoleHonouree), ShouldEqual, 0)
			So(r.RolePoints("guest"), ShouldEqual, 0)
			So(r.GiftPoints(scoring.GiftVoter), ShouldEqual, 5)
			So(r.GiftPoints(scoring.GiftWinner), ShouldEqual, 20)
		})
	})
}

func TestPaymentPoints(t *testing.T) {
	Convey("Given a conversion rate of 0.5", t, func() {
		r := scoring.NewRules()

		Convey("When a payment of 301.00 is confirmed", func() {
			Convey("Then points round up to 151", func() {
				So(r.PaymentPoints(decimal.RequireFromString("301.00")), ShouldEqual, 151)
			})
		})

		Convey("When the amount converts exactly", func() {
			So(r.PaymentPoints(decimal.RequireFromString("300")), ShouldEqual, 150)
		})

		Convey("When a cent pushes past a whole point", func() {
			So(r.PaymentPoints(decimal.RequireFromString("0.01")), ShouldEqual, 1)
		})
	})

	Convey("Given a custom conversion rate", t, func() {
		r := scoring.NewRules(scoring.WithConversionRate(decimal.RequireFromString("0.1")))
		So(r.PaymentPoints(decimal.RequireFromString("45")), ShouldEqual, 5)
	})
}

func TestPaymentOverdue(t *testing.T) {
	Convey("Given a 7 day threshold", t, func() {
		r := scoring.NewRules()
		created := time.Date(2026, 1, 1, 18, 0, 0, 0, time.UTC)

		Convey("Paying on day 7 is late", func() {
			days, late := r.PaymentOverdue(created, created.Add(6*24*time.Hour+7*time.Hour))
			So(days, ShouldEqual, 7)
			So(late, ShouldBeTrue)
		})

		Convey("Paying on day 6 is on time", func() {
			days, late := r.PaymentOverdue(created, created.Add(6*24*time.Hour))
			So(days, ShouldEqual, 6)
			So(late, ShouldBeFalse)
		})
	})
}

func TestOptions(t *testing.T) {
	Convey("Given rule options", t, func() {
		r := scoring.NewRules(
			scoring.WithPaymentPenalty(40),
			scoring.WithPaymentOverdueThreshold(3*24*time.Hour),
			scoring.WithRankChangeInterval(14*24*time.Hour),
			scoring.WithReminderLeadTime(24*time.Hour),
			scoring.WithRolePoints(map[model.Role]int64{model.RoleAttendee: 12}),
			scoring.WithGiftPoints(map[string]int64{scoring.GiftProposer: 3}),
			scoring.WithConversionRate(decimal.Zero),
		)

		So(r.PaymentPenalty(), ShouldEqual, -40)
		So(r.PaymentOverdueThreshold(), ShouldEqual, 3*24*time.Hour)
		So(r.RankChangeInterval(), ShouldEqual, 14*24*time.Hour)
		So(r.ReminderLeadTime(), ShouldEqual, 24*time.Hour)
		So(r.RolePoints(model.RoleAttendee), ShouldEqual, 12)
		So(r.RolePoints(model.RoleOrganizer), ShouldEqual, 20)
		So(r.GiftPoints(scoring.GiftProposer), ShouldEqual, 3)
		So(r.ConversionRate().String(), ShouldEqual, "0.5")
	})
}
