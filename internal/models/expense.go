package models

// Participant identifies a member in an expense.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Expense is a payment made by one member on behalf of several.
type Expense struct {
	// Description is a human-readable label (e.g. "Dinner at Italian Restaurant").
	Description string `json:"description"`

	// PaidBy is the member who paid.
	PaidBy Participant `json:"paid_by"`

	// Amount is the total paid.
	Amount Amount `json:"amount"`

	// Participants split the amount. If Shares is empty the amount is split equally.
	Participants []Participant `json:"participants"`

	// Shares optionally gives each participant's portion, in Participants order.
	Shares []Amount `json:"shares,omitempty"`
}

// SettleExpensesRequest asks for balances and transfers computed from expenses.
type SettleExpensesRequest struct {
	Expenses []Expense `json:"expenses"`
}
