package calculator

import (
	"fmt"

	"github.com/mmynk/settleup/internal/money"
)

// Balances aggregates expenses into per-member totals ready for Settle.
//
// Algorithm:
// - Payer contributed +amount
// - Each participant owes their share (even split unless shares are given)
//
// Members are keyed by ID and returned in the order they are first seen,
// so the settlement tie-break is reproducible. Totals are kept within
// ±money.MaxAmount so the resulting nets cannot overflow.
func Balances(expenses []Expense) ([]MemberBalance, error) {
	var balances []MemberBalance
	positions := make(map[string]int)

	member := func(p Party) *MemberBalance {
		i, exists := positions[p.ID]
		if !exists {
			i = len(balances)
			positions[p.ID] = i
			balances = append(balances, MemberBalance{ID: p.ID, Name: p.Name})
		}
		return &balances[i]
	}

	for i, e := range expenses {
		if e.Payer.ID == "" {
			return nil, fmt.Errorf("%w: expense %d (%q) has no payer", ErrInvalidExpense, i, e.Description)
		}
		for _, p := range e.Participants {
			if p.ID == "" {
				return nil, fmt.Errorf("%w: expense %d (%q) has a participant without id", ErrInvalidExpense, i, e.Description)
			}
		}

		shares, err := CalculateShares(e)
		if err != nil {
			return nil, fmt.Errorf("expense %d (%q): %w", i, e.Description, err)
		}

		// Payer paid the full amount
		payer := member(e.Payer)
		if payer.Paid, err = money.Add(payer.Paid, e.Amount); err != nil {
			return nil, fmt.Errorf("%w: expense %d (%q): total paid by %s: %w", ErrInvalidExpense, i, e.Description, e.Payer.ID, err)
		}

		for j, p := range e.Participants {
			participant := member(p)
			if participant.Share, err = money.Add(participant.Share, shares[j]); err != nil {
				return nil, fmt.Errorf("%w: expense %d (%q): total share of %s: %w", ErrInvalidExpense, i, e.Description, p.ID, err)
			}
		}
	}

	return balances, nil
}
