package settlement_test

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/okian/kudos/internal/domain/settlement"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeExample(t *testing.T) {
	Convey("Given €90 paid by honoree A and €60 by outside payer X", t, func() {
		plan, err := settlement.Compute(settlement.Input{
			Expenses: []settlement.Expense{
				{TaskID: "t1", PayerID: "A", Amount: d("90")},
				{TaskID: "t2", PayerID: "X", Amount: d("60")},
			},
			Beneficiaries: []string{"A", "B"},
		})
		So(err, ShouldBeNil)

		Convey("Then each honoree owes a share of 75", func() {
			So(plan.Total.Equal(d("150")), ShouldBeTrue)
			So(plan.Balances[0].Net.Equal(d("15")), ShouldBeTrue)
			So(plan.Balances[1].Net.Equal(d("-75")), ShouldBeTrue)
		})

		Convey("Then B pays X 60 and A 15", func() {
			So(len(plan.Transfers), ShouldEqual, 2)
			So(plan.Transfers[0].FromID, ShouldEqual, "B")
			So(plan.Transfers[0].ToID, ShouldEqual, "X")
			So(plan.Transfers[0].Amount.Equal(d("60")), ShouldBeTrue)
			So(plan.Transfers[1].FromID, ShouldEqual, "B")
			So(plan.Transfers[1].ToID, ShouldEqual, "A")
			So(plan.Transfers[1].Amount.Equal(d("15")), ShouldBeTrue)
		})

		Convey("Then A's own payment is routed as a self settlement", func() {
			So(len(plan.SelfSettlements), ShouldEqual, 1)
			So(plan.SelfSettlements[0].FromID, ShouldEqual, "A")
			So(plan.SelfSettlements[0].ToID, ShouldEqual, "A")
			So(plan.SelfSettlements[0].Amount.Equal(d("90")), ShouldBeTrue)
		})

		Convey("Then the plan conserves money", func() {
			So(plan.Verify(), ShouldBeNil)
		})
	})
}

func TestComputeValidation(t *testing.T) {
	Convey("Given invalid settlement input", t, func() {
		Convey("An empty beneficiary set is rejected before dividing", func() {
			_, err := settlement.Compute(settlement.Input{
				Expenses: []settlement.Expense{{TaskID: "t1", PayerID: "A", Amount: d("10")}},
			})
			So(errors.Is(err, settlement.ErrNoBeneficiaries), ShouldBeTrue)
		})

		Convey("A task without payer is rejected", func() {
			_, err := settlement.Compute(settlement.Input{
				Expenses:      []settlement.Expense{{TaskID: "t1", Amount: d("10")}},
				Beneficiaries: []string{"A"},
			})
			So(errors.Is(err, settlement.ErrMissingPayer), ShouldBeTrue)
		})

		Convey("Negative and sub-cent amounts are rejected", func() {
			for _, amt := range []string{"-1", "10.005"} {
				_, err := settlement.Compute(settlement.Input{
					Expenses:      []settlement.Expense{{TaskID: "t1", PayerID: "A", Amount: d(amt)}},
					Beneficiaries: []string{"A"},
				})
				So(errors.Is(err, settlement.ErrInvalidAmount), ShouldBeTrue)
			}
		})
	})
}

func TestComputeEdgeCases(t *testing.T) {
	Convey("Given a total that does not split evenly", t, func() {
		plan, err := settlement.Compute(settlement.Input{
			Expenses:      []settlement.Expense{{TaskID: "t1", PayerID: "A", Amount: d("100")}},
			Beneficiaries: []string{"A", "B", "C"},
		})
		So(err, ShouldBeNil)

		Convey("Then leftover cents go to the first beneficiaries", func() {
			So(plan.Balances[0].Share.Equal(d("33.34")), ShouldBeTrue)
			So(plan.Balances[1].Share.Equal(d("33.33")), ShouldBeTrue)
			So(plan.Balances[2].Share.Equal(d("33.33")), ShouldBeTrue)
			So(plan.Verify(), ShouldBeNil)
		})
	})

	Convey("Given one outside payer across several tasks", t, func() {
		plan, err := settlement.Compute(settlement.Input{
			Expenses: []settlement.Expense{
				{TaskID: "t1", PayerID: "X", Amount: d("30")},
				{TaskID: "t2", PayerID: "X", Amount: d("20")},
				{TaskID: "t3", PayerID: "X", Amount: d("0")},
			},
			Beneficiaries: []string{"A"},
		})
		So(err, ShouldBeNil)

		Convey("Then the transfers to X are merged into one", func() {
			So(len(plan.Transfers), ShouldEqual, 1)
			So(plan.Transfers[0].Amount.Equal(d("50")), ShouldBeTrue)
			So(plan.SelfSettlements, ShouldBeEmpty)
			So(plan.Verify(), ShouldBeNil)
		})
	})

	Convey("Given duplicated beneficiaries", t, func() {
		plan, err := settlement.Compute(settlement.Input{
			Expenses:      []settlement.Expense{{TaskID: "t1", PayerID: "A", Amount: d("40")}},
			Beneficiaries: []string{"A", "B", "A"},
		})
		So(err, ShouldBeNil)
		So(len(plan.Balances), ShouldEqual, 2)
		So(plan.Balances[1].Share.Equal(d("20")), ShouldBeTrue)
	})

	Convey("Given no expenses", t, func() {
		plan, err := settlement.Compute(settlement.Input{Beneficiaries: []string{"A", "B"}})
		So(err, ShouldBeNil)
		So(plan.Transfers, ShouldBeEmpty)
		So(plan.Verify(), ShouldBeNil)
	})
}

func TestComputeConservation(t *testing.T) {
	Convey("Given random settlements", t, func() {
		rng := rand.New(rand.NewSource(7)) //nolint:gosec // deterministic test data
		for run := 0; run < 200; run++ {
			var in settlement.Input
			for b := 0; b <= rng.Intn(5); b++ {
				in.Beneficiaries = append(in.Beneficiaries, fmt.Sprintf("b%d", b))
			}
			for e := 0; e < rng.Intn(6); e++ {
				payer := fmt.Sprintf("b%d", rng.Intn(6))
				if rng.Intn(3) == 0 {
					payer = fmt.Sprintf("x%d", rng.Intn(3))
				}
				in.Expenses = append(in.Expenses, settlement.Expense{
					TaskID:  fmt.Sprintf("t%d", e),
					PayerID: payer,
					Amount:  decimal.New(rng.Int63n(100_000), -2),
				})
			}

			plan, err := settlement.Compute(in)
			So(err, ShouldBeNil)
			So(plan.Verify(), ShouldBeNil)
		}
	})
}
