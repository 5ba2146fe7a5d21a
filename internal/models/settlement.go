package models

// Member is one participant's totals in a settlement request.
type Member struct {
	// ID is the caller's identifier for the member.
	ID string `json:"id"`

	// Name is the display name of the member.
	Name string `json:"name"`

	// Paid is the total amount this member contributed.
	Paid Amount `json:"paid"`

	// Share is the total amount this member owes.
	Share Amount `json:"share"`
}

// SettleRequest asks for the transfers that settle a set of member balances.
type SettleRequest struct {
	Members []Member `json:"members"`
}

// Transfer is a payment from one member to another.
type Transfer struct {
	From     string `json:"from"`
	FromName string `json:"from_name"`
	To       string `json:"to"`
	ToName   string `json:"to_name"`
	Amount   string `json:"amount"`
}

// Residual is a balance the transfers could not settle.
// Positive = still owed money, Negative = still owes money.
type Residual struct {
	Member string `json:"member"`
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

// Balance is a member's computed totals, returned when settling expenses.
type Balance struct {
	Member string `json:"member"`
	Name   string `json:"name"`
	Paid   string `json:"paid"`
	Share  string `json:"share"`
	Net    string `json:"net"`
}

// SettleResponse is the result of a settlement run.
type SettleResponse struct {
	Balances  []Balance  `json:"balances,omitempty"`
	Transfers []Transfer `json:"transfers"`
	Residuals []Residual `json:"residuals"`
}
