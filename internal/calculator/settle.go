package calculator

import (
	"cmp"
	"slices"

	"github.com/mmynk/settleup/internal/money"
)

// MemberBalance is one member's totals going into a settlement run.
// Paid and Share must stay within ±money.MaxAmount so Net cannot overflow.
type MemberBalance struct {
	ID    string
	Name  string
	Paid  money.Amount // Total contributed
	Share money.Amount // Total owed
}

// Net returns paid minus share. Positive = owed money, Negative = owes money.
func (m MemberBalance) Net() money.Amount {
	return m.Paid - m.Share
}

// Party identifies a member on either side of a transfer.
// Index is the member's position in the input, which stays unique even when
// IDs or names repeat.
type Party struct {
	Index int
	ID    string
	Name  string
}

// Transfer is a single payment instruction. Amount is always positive.
type Transfer struct {
	From   Party // Person who pays
	To     Party // Person who receives
	Amount money.Amount
}

// Residual is a net balance left over after settlement.
type Residual struct {
	Member Party
	Amount money.Amount
}

// Plan is the full result of a settlement run.
type Plan struct {
	Transfers []Transfer
	Residuals []Residual
}

// netEntry is a working record of the sweep. index is the member's input position.
type netEntry struct {
	index int
	net   money.Amount
}

// ComputeSettlements returns the transfers that settle the given balances.
// See Settle for the algorithm.
func ComputeSettlements(balances []MemberBalance) []Transfer {
	return Settle(balances).Transfers
}

// Settle computes a small set of transfers that drives every member's net
// balance to zero, along with any balance that could not be settled.
//
// Algorithm:
// - Sort members by net ascending; equal nets keep their input order
// - Match the largest debtor (low) with the largest creditor (high)
// - Transfer min(debt, credit), then move whichever cursor reached zero
//
// At most len(balances)-1 transfers are produced. Amounts are exact minor
// units, so "reached zero" is an exact comparison. If the nets do not sum to
// zero the surplus or deficit stays with whichever members carry it and is
// reported in Plan.Residuals. The input slice is not modified.
func Settle(balances []MemberBalance) Plan {
	var plan Plan
	if len(balances) < 2 {
		plan.Residuals = residuals(balances, nets(balances))
		return plan
	}

	entries := make([]netEntry, len(balances))
	for i, b := range balances {
		entries[i] = netEntry{index: i, net: b.Net()}
	}
	slices.SortStableFunc(entries, func(a, b netEntry) int {
		return cmp.Compare(a.net, b.net)
	})

	low, high := 0, len(entries)-1
	for low < high {
		debtor, creditor := &entries[low], &entries[high]

		// Imbalanced input can leave a cursor on a member with nothing to give
		// or take. Move past it rather than applying a negative amount.
		if debtor.net >= 0 || creditor.net <= 0 {
			if debtor.net >= 0 {
				low++
			}
			if creditor.net <= 0 {
				high--
			}
			continue
		}

		amount := money.Min(-debtor.net, creditor.net)
		plan.Transfers = append(plan.Transfers, Transfer{
			From:   partyOf(balances, debtor.index),
			To:     partyOf(balances, creditor.index),
			Amount: amount,
		})

		debtor.net += amount
		creditor.net -= amount

		if debtor.net == 0 {
			low++
		}
		if creditor.net == 0 {
			high--
		}
	}

	remaining := make([]money.Amount, len(balances))
	for _, e := range entries {
		remaining[e.index] = e.net
	}
	plan.Residuals = residuals(balances, remaining)
	return plan
}

// Apply returns each member's net balance after the transfers are paid.
// Transfers are matched to members by Party.Index; out-of-range indexes are ignored.
func Apply(balances []MemberBalance, transfers []Transfer) []money.Amount {
	result := nets(balances)
	for _, t := range transfers {
		if t.From.Index >= 0 && t.From.Index < len(result) {
			result[t.From.Index] += t.Amount
		}
		if t.To.Index >= 0 && t.To.Index < len(result) {
			result[t.To.Index] -= t.Amount
		}
	}
	return result
}

func nets(balances []MemberBalance) []money.Amount {
	result := make([]money.Amount, len(balances))
	for i, b := range balances {
		result[i] = b.Net()
	}
	return result
}

func residuals(balances []MemberBalance, remaining []money.Amount) []Residual {
	var out []Residual
	for i, amount := range remaining {
		if amount != 0 {
			out = append(out, Residual{Member: partyOf(balances, i), Amount: amount})
		}
	}
	return out
}

func partyOf(balances []MemberBalance, i int) Party {
	return Party{Index: i, ID: balances[i].ID, Name: balances[i].Name}
}
