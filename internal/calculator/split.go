package calculator

import (
	"errors"
	"fmt"

	"github.com/mmynk/settleup/internal/money"
)

// ErrInvalidExpense is returned when an expense cannot be turned into shares.
var ErrInvalidExpense = errors.New("invalid expense")

// Expense is a single payment made by one member on behalf of several.
type Expense struct {
	Description string
	Payer       Party
	Amount      money.Amount

	// Participants split the amount. The payer only owes a share if listed here.
	Participants []Party

	// Shares optionally gives each participant's portion, in the same order as
	// Participants. When empty the amount is split evenly.
	Shares []money.Amount
}

// SplitEvenly divides amount into n portions that differ by at most one minor unit.
// Leftover units go one each to the first portions, so the result always sums to amount.
func SplitEvenly(amount money.Amount, n int) ([]money.Amount, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: must have at least one participant", ErrInvalidExpense)
	}

	base := amount / money.Amount(n)
	remainder := amount % money.Amount(n)

	step := money.Amount(1)
	if remainder < 0 {
		step = -1
		remainder = -remainder
	}

	portions := make([]money.Amount, n)
	for i := range portions {
		portions[i] = base
		if money.Amount(i) < remainder {
			portions[i] += step
		}
	}
	return portions, nil
}

// CalculateShares returns each participant's portion of an expense.
func CalculateShares(e Expense) ([]money.Amount, error) {
	if e.Amount <= 0 || e.Amount > money.MaxAmount {
		return nil, fmt.Errorf("%w: amount must be positive and at most %s, got %s",
			ErrInvalidExpense, money.MaxAmount, e.Amount)
	}
	if len(e.Participants) == 0 {
		return nil, fmt.Errorf("%w: must have at least one participant", ErrInvalidExpense)
	}

	// If no explicit shares, split equally among all participants
	if len(e.Shares) == 0 {
		return SplitEvenly(e.Amount, len(e.Participants))
	}

	if len(e.Shares) != len(e.Participants) {
		return nil, fmt.Errorf("%w: got %d shares for %d participants",
			ErrInvalidExpense, len(e.Shares), len(e.Participants))
	}

	var sum money.Amount
	for _, share := range e.Shares {
		if share < 0 {
			return nil, fmt.Errorf("%w: share cannot be negative, got %s", ErrInvalidExpense, share)
		}
		var err error
		if sum, err = money.Add(sum, share); err != nil {
			return nil, fmt.Errorf("%w: shares: %w", ErrInvalidExpense, err)
		}
	}
	if sum != e.Amount {
		return nil, fmt.Errorf("%w: shares sum to %s, amount is %s", ErrInvalidExpense, sum, e.Amount)
	}

	shares := make([]money.Amount, len(e.Shares))
	copy(shares, e.Shares)
	return shares, nil
}
