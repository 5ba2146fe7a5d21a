package service

import (
	"fmt"
	"strings"

	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/money"
)

// amount parses a request amount into minor units. Missing amounts are zero.
func (s *SettlementService) amount(field string, a models.Amount) (money.Amount, error) {
	if strings.TrimSpace(string(a)) == "" {
		return 0, nil
	}
	v, err := money.Parse(string(a), s.opts.CurrencyPlaces)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}

func (s *SettlementService) format(a money.Amount) string {
	return a.Format(s.opts.CurrencyPlaces)
}

// toBalances converts request members to calculator balances, rounding to minor units.
func (s *SettlementService) toBalances(members []models.Member) ([]calculator.MemberBalance, error) {
	balances := make([]calculator.MemberBalance, len(members))
	for i, m := range members {
		paid, err := s.amount(fmt.Sprintf("members[%d].paid", i), m.Paid)
		if err != nil {
			return nil, err
		}
		share, err := s.amount(fmt.Sprintf("members[%d].share", i), m.Share)
		if err != nil {
			return nil, err
		}
		balances[i] = calculator.MemberBalance{
			ID:    m.ID,
			Name:  m.Name,
			Paid:  paid,
			Share: share,
		}
	}
	return balances, nil
}

func toParty(p models.Participant) calculator.Party {
	return calculator.Party{ID: p.ID, Name: p.Name}
}

// toExpenses converts request expenses to calculator expenses.
func (s *SettlementService) toExpenses(expenses []models.Expense) ([]calculator.Expense, error) {
	out := make([]calculator.Expense, len(expenses))
	for i, e := range expenses {
		participants := make([]calculator.Party, len(e.Participants))
		for j, p := range e.Participants {
			participants[j] = toParty(p)
		}

		amount, err := s.amount(fmt.Sprintf("expenses[%d].amount", i), e.Amount)
		if err != nil {
			return nil, err
		}

		var shares []money.Amount
		if len(e.Shares) > 0 {
			shares = make([]money.Amount, len(e.Shares))
			for j, share := range e.Shares {
				if shares[j], err = s.amount(fmt.Sprintf("expenses[%d].shares[%d]", i, j), share); err != nil {
					return nil, err
				}
			}
		}

		out[i] = calculator.Expense{
			Description:  e.Description,
			Payer:        toParty(e.PaidBy),
			Amount:       amount,
			Participants: participants,
			Shares:       shares,
		}
	}
	return out, nil
}

// toResponse converts a plan (and optionally the balances it came from) to the API shape.
func (s *SettlementService) toResponse(plan calculator.Plan, balances []calculator.MemberBalance) *models.SettleResponse {
	resp := &models.SettleResponse{
		Transfers: make([]models.Transfer, len(plan.Transfers)),
		Residuals: make([]models.Residual, len(plan.Residuals)),
	}

	for i, t := range plan.Transfers {
		resp.Transfers[i] = models.Transfer{
			From:     t.From.ID,
			FromName: t.From.Name,
			To:       t.To.ID,
			ToName:   t.To.Name,
			Amount:   s.format(t.Amount),
		}
	}

	for i, r := range plan.Residuals {
		resp.Residuals[i] = models.Residual{
			Member: r.Member.ID,
			Name:   r.Member.Name,
			Amount: s.format(r.Amount),
		}
	}

	if balances != nil {
		resp.Balances = make([]models.Balance, len(balances))
		for i, b := range balances {
			resp.Balances[i] = models.Balance{
				Member: b.ID,
				Name:   b.Name,
				Paid:   s.format(b.Paid),
				Share:  s.format(b.Share),
				Net:    s.format(b.Net()),
			}
		}
	}

	return resp
}
