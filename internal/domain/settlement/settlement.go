// Package settlement splits an event's costs equally among its beneficiaries
// and computes the settling payments with a greedy largest-first netting.
//
// All money is exact decimal in minor units of two places. Compute is pure;
// persisting the plan is the caller's business.
package settlement

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

const centPlaces = 2

// Expense is one cost-bearing task and the profile that fronted its cost.
type Expense struct {
	TaskID  string
	PayerID string
	Amount  decimal.Decimal
}

// Input is everything a settlement needs. Beneficiaries share the total;
// duplicates are ignored and order decides who absorbs leftover cents.
type Input struct {
	Expenses      []Expense
	Beneficiaries []string
}

// Transfer is one payment from FromID to ToID.
type Transfer struct {
	FromID string          `json:"from"`
	ToID   string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// Balance is a beneficiary's position before netting.
type Balance struct {
	ProfileID string          `json:"profile_id"`
	PaidBy    decimal.Decimal `json:"paid_by"`
	Share     decimal.Decimal `json:"share"`
	Net       decimal.Decimal `json:"net"`
}

// Plan is the result of Compute.
type Plan struct {
	Total    decimal.Decimal `json:"total"`
	Balances []Balance       `json:"balances"`
	// Claims are the amounts owed to payers outside the beneficiary set.
	Claims map[string]decimal.Decimal `json:"claims"`
	// Transfers are merged by (from, to) in first-occurrence order.
	Transfers []Transfer `json:"transfers"`
	// SelfSettlements route what a beneficiary already paid through the
	// payment ledger: one from=to transfer per beneficiary with PaidBy > 0.
	SelfSettlements []Transfer `json:"self_settlements"`
}

type position struct {
	id     string
	amount decimal.Decimal
}

// Compute validates in and builds the settlement plan.
func Compute(in Input) (Plan, error) {
	beneficiaries := dedupe(in.Beneficiaries)
	if len(beneficiaries) == 0 {
		return Plan{}, ErrNoBeneficiaries
	}
	isBeneficiary := make(map[string]bool, len(beneficiaries))
	for _, b := range beneficiaries {
		if b == "" {
			return Plan{}, fmt.Errorf("%w: empty beneficiary id", ErrNoBeneficiaries)
		}
		isBeneficiary[b] = true
	}

	total := decimal.Zero
	paidBy := make(map[string]decimal.Decimal, len(beneficiaries))
	claims := map[string]decimal.Decimal{}
	var creditors []position
	for _, e := range in.Expenses {
		if e.PayerID == "" {
			return Plan{}, fmt.Errorf("%w: task %s", ErrMissingPayer, e.TaskID)
		}
		if e.Amount.IsNegative() || !e.Amount.Equal(e.Amount.Round(centPlaces)) {
			return Plan{}, fmt.Errorf("%w: task %s amount %s", ErrInvalidAmount, e.TaskID, e.Amount)
		}
		total = total.Add(e.Amount)
		if isBeneficiary[e.PayerID] {
			paidBy[e.PayerID] = paidBy[e.PayerID].Add(e.Amount)
			continue
		}
		if e.Amount.IsZero() {
			continue
		}
		claims[e.PayerID] = claims[e.PayerID].Add(e.Amount)
		creditors = append(creditors, position{id: e.PayerID, amount: e.Amount})
	}

	plan := Plan{Total: total, Claims: claims}
	shares := splitShares(total, len(beneficiaries))
	var debtors []position
	for i, b := range beneficiaries {
		net := paidBy[b].Sub(shares[i])
		plan.Balances = append(plan.Balances, Balance{ProfileID: b, PaidBy: paidBy[b], Share: shares[i], Net: net})
		switch {
		case net.IsPositive():
			creditors = append(creditors, position{id: b, amount: net})
		case net.IsNegative():
			debtors = append(debtors, position{id: b, amount: net.Neg()})
		}
		if paidBy[b].IsPositive() {
			plan.SelfSettlements = append(plan.SelfSettlements, Transfer{FromID: b, ToID: b, Amount: paidBy[b]})
		}
	}

	plan.Transfers = merge(greedy(debtors, creditors))
	return plan, nil
}

// splitShares divides total into n shares of whole cents. Leftover cents go
// to the first shares so the shares always add up to total. An unrounded
// total/n quotient keeps fractions of a cent instead; shares and transfers
// here differ from such a split by less than one cent per share.
func splitShares(total decimal.Decimal, n int) []decimal.Decimal {
	cents := total.Shift(centPlaces).IntPart()
	base, rem := cents/int64(n), cents%int64(n)
	shares := make([]decimal.Decimal, n)
	for i := range shares {
		c := base
		if int64(i) < rem {
			c++
		}
		shares[i] = decimal.New(c, -centPlaces)
	}
	return shares
}

// greedy matches the largest debtor against the largest creditor until one side
// runs out.
func greedy(debtors, creditors []position) []Transfer {
	byAmount := func(p []position) func(i, j int) bool {
		return func(i, j int) bool { return p[i].amount.GreaterThan(p[j].amount) }
	}
	sort.SliceStable(debtors, byAmount(debtors))
	sort.SliceStable(creditors, byAmount(creditors))

	var out []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amt := decimal.Min(debtors[i].amount, creditors[j].amount)
		out = append(out, Transfer{FromID: debtors[i].id, ToID: creditors[j].id, Amount: amt})
		debtors[i].amount = debtors[i].amount.Sub(amt)
		creditors[j].amount = creditors[j].amount.Sub(amt)
		if debtors[i].amount.IsZero() {
			i++
		}
		if creditors[j].amount.IsZero() {
			j++
		}
	}
	return out
}

func merge(transfers []Transfer) []Transfer {
	type pair struct{ from, to string }
	idx := map[pair]int{}
	var out []Transfer
	for _, t := range transfers {
		k := pair{t.FromID, t.ToID}
		if i, ok := idx[k]; ok {
			out[i].Amount = out[i].Amount.Add(t.Amount)
			continue
		}
		idx[k] = len(out)
		out = append(out, t)
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Verify checks that no money is created or lost: every beneficiary ends at
// its share, every outside payer is repaid its claim, and the transfers plus
// self settlements minus what beneficiaries received equal the total.
func (p Plan) Verify() error {
	sent := map[string]decimal.Decimal{}
	received := map[string]decimal.Decimal{}
	moved := decimal.Zero
	for _, t := range p.Transfers {
		if !t.Amount.IsPositive() {
			return fmt.Errorf("%w: non-positive transfer %s -> %s", ErrUnbalanced, t.FromID, t.ToID)
		}
		sent[t.FromID] = sent[t.FromID].Add(t.Amount)
		received[t.ToID] = received[t.ToID].Add(t.Amount)
		moved = moved.Add(t.Amount)
	}

	accounted := moved
	isBeneficiary := map[string]bool{}
	for _, b := range p.Balances {
		isBeneficiary[b.ProfileID] = true
		cost := b.PaidBy.Add(sent[b.ProfileID]).Sub(received[b.ProfileID])
		if !cost.Equal(b.Share) {
			return fmt.Errorf("%w: %s ends at %s, share %s", ErrUnbalanced, b.ProfileID, cost, b.Share)
		}
		accounted = accounted.Add(b.PaidBy).Sub(received[b.ProfileID])
	}
	for id, claim := range p.Claims {
		if !received[id].Equal(claim) {
			return fmt.Errorf("%w: %s repaid %s of %s", ErrUnbalanced, id, received[id], claim)
		}
	}
	for id := range received {
		if !isBeneficiary[id] {
			if _, ok := p.Claims[id]; !ok {
				return fmt.Errorf("%w: %s receives without a claim", ErrUnbalanced, id)
			}
		}
	}
	if !accounted.Equal(p.Total) {
		return fmt.Errorf("%w: accounted %s, total %s", ErrUnbalanced, accounted, p.Total)
	}
	return nil
}
