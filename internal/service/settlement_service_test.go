package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/models"
)

type fakeObserver struct {
	mu        sync.Mutex
	runs      int
	transfers int
	residuals map[string]int
}

func (f *fakeObserver) ObserveSettlement(members, transfers int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	f.transfers += transfers
}

func (f *fakeObserver) ObserveResidual(severity string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.residuals == nil {
		f.residuals = make(map[string]int)
	}
	f.residuals[severity]++
}

func (f *fakeObserver) counts() (runs, transfers int, residuals map[string]int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	residuals = make(map[string]int, len(f.residuals))
	for k, v := range f.residuals {
		residuals[k] = v
	}
	return f.runs, f.transfers, residuals
}

type testServer struct {
	url      string
	observer *fakeObserver
	settle   *connect.Client[models.SettleRequest, models.SettleResponse]
	expenses *connect.Client[models.SettleExpensesRequest, models.SettleResponse]
}

// setupTestServer creates a test server with the SettlementService mounted the way the server binary does.
func setupTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	observer := &fakeObserver{}
	opts.Observer = observer
	if opts.CurrencyPlaces == 0 {
		opts.CurrencyPlaces = 2
	}
	if opts.MaxMembers == 0 {
		opts.MaxMembers = 100
	}
	if opts.MaxExpenses == 0 {
		opts.MaxExpenses = 100
	}

	path, handler := NewSettlementServiceHandler(NewSettlementService(opts),
		connect.WithInterceptors(middleware.LoggingInterceptor()))

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	mux.HandleFunc("GET /healthz", Health)

	server := httptest.NewServer(middleware.RequestID(mux))
	t.Cleanup(server.Close)

	settle, expenses := NewSettlementClients(http.DefaultClient, server.URL)
	return &testServer{url: server.URL, observer: observer, settle: settle, expenses: expenses}
}

// post sends a raw JSON body to a procedure, the way a browser or curl would.
func post(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	return resp, data
}

func decodeSettleResponse(t *testing.T, data []byte) models.SettleResponse {
	t.Helper()

	var out models.SettleResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("failed to decode response %s: %v", data, err)
	}
	return out
}

func assertTransfers(t *testing.T, got, want []models.Transfer) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("transfers: expected %d, got %d (%+v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transfer %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestSettle(t *testing.T) {
	ts := setupTestServer(t, Options{ResidualTolerance: 1})

	resp, err := ts.settle.CallUnary(context.Background(), connect.NewRequest(&models.SettleRequest{
		Members: []models.Member{
			{ID: "1", Name: "Alice", Paid: "1050", Share: "1000"},
			{ID: "2", Name: "Bob", Paid: "970", Share: "1000"},
			{ID: "3", Name: "Charlie", Paid: "980.00", Share: "1000"},
			{ID: "4", Name: "David", Paid: "1000", Share: "1000"},
		},
	}))
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	assertTransfers(t, resp.Msg.Transfers, []models.Transfer{
		{From: "2", FromName: "Bob", To: "1", ToName: "Alice", Amount: "30.00"},
		{From: "3", FromName: "Charlie", To: "1", ToName: "Alice", Amount: "20.00"},
	})
	if len(resp.Msg.Residuals) != 0 {
		t.Errorf("expected no residuals, got %+v", resp.Msg.Residuals)
	}
	if resp.Msg.Balances != nil {
		t.Errorf("balances should be omitted, got %+v", resp.Msg.Balances)
	}

	if runs, transfers, _ := ts.observer.counts(); runs != 1 || transfers != 2 {
		t.Errorf("observer: runs=%d transfers=%d, want 1 and 2", runs, transfers)
	}
}

func TestSettle_RawJSON(t *testing.T) {
	ts := setupTestServer(t, Options{})

	// Amounts may be JSON numbers or strings.
	resp, data := post(t, ts.url+SettleProcedure, `{
		"members": [
			{"id": "1", "name": "Alice", "paid": 970, "share": "1000"},
			{"id": "2", "name": "Bob", "paid": "1030", "share": 1000}
		]
	}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, data)
	}
	if resp.Header.Get(middleware.RequestIDHeader) == "" {
		t.Error("expected request ID header on response")
	}

	out := decodeSettleResponse(t, data)
	assertTransfers(t, out.Transfers, []models.Transfer{
		{From: "1", FromName: "Alice", To: "2", ToName: "Bob", Amount: "30.00"},
	})
}

func TestSettle_CommaDecimal(t *testing.T) {
	ts := setupTestServer(t, Options{})

	tests := []struct {
		name string
		body string
	}{
		{name: "comma in string amount", body: `{"members": [
			{"id": "a", "name": "A", "paid": "12,34", "share": "0"},
			{"id": "b", "name": "B", "paid": "0", "share": "12.34"}
		]}`},
		{name: "comma on both sides", body: `{"members": [
			{"id": "a", "name": "A", "paid": " 12,34 ", "share": "0"},
			{"id": "b", "name": "B", "share": "12,34"}
		]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := post(t, ts.url+SettleProcedure, tt.body)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, body = %s", resp.StatusCode, data)
			}
			out := decodeSettleResponse(t, data)
			assertTransfers(t, out.Transfers, []models.Transfer{
				{From: "b", FromName: "B", To: "a", ToName: "A", Amount: "12.34"},
			})
			if len(out.Residuals) != 0 {
				t.Errorf("expected no residuals, got %+v", out.Residuals)
			}
		})
	}
}

func TestSettle_EmptyAndBalanced(t *testing.T) {
	ts := setupTestServer(t, Options{})

	tests := []struct {
		name string
		body string
	}{
		{name: "no members", body: `{"members": []}`},
		{name: "missing members", body: `{}`},
		{name: "single member", body: `{"members": [{"id": "1", "name": "Solo", "paid": "10", "share": "0"}]}`},
		{name: "balanced members", body: `{"members": [
			{"id": "1", "name": "A", "paid": "10", "share": "10"},
			{"id": "2", "name": "B", "paid": "10", "share": "10"},
			{"id": "3", "name": "C", "paid": "10", "share": "10"}
		]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := post(t, ts.url+SettleProcedure, tt.body)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, body = %s", resp.StatusCode, data)
			}
			out := decodeSettleResponse(t, data)
			if len(out.Transfers) != 0 {
				t.Errorf("expected no transfers, got %+v", out.Transfers)
			}
			if !bytes.Contains(data, []byte(`"transfers":[]`)) {
				t.Errorf("transfers should encode as an empty array: %s", data)
			}
		})
	}
}

func TestSettle_Residuals(t *testing.T) {
	ts := setupTestServer(t, Options{ResidualTolerance: 1})

	// Nets: A +50.01, B -25.00, C -25.00 → 0.01 left with A (tolerated)
	resp, err := ts.settle.CallUnary(context.Background(), connect.NewRequest(&models.SettleRequest{
		Members: []models.Member{
			{ID: "a", Name: "A", Paid: "50.01", Share: "0"},
			{ID: "b", Name: "B", Paid: "0", Share: "25"},
			{ID: "c", Name: "C", Paid: "0", Share: "25"},
		},
	}))
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if r := resp.Msg.Residuals; len(r) != 1 || r[0].Member != "a" || r[0].Amount != "0.01" {
		t.Errorf("unexpected residuals: %+v", r)
	}

	// Nets: A -10, B +5 → 5.00 left with A (warning)
	_, err = ts.settle.CallUnary(context.Background(), connect.NewRequest(&models.SettleRequest{
		Members: []models.Member{
			{ID: "a", Name: "A", Share: "10"},
			{ID: "b", Name: "B", Paid: "5"},
		},
	}))
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	_, _, residuals := ts.observer.counts()
	if residuals["tolerated"] != 1 || residuals["warning"] != 1 {
		t.Errorf("residual counts = %v, want 1 tolerated and 1 warning", residuals)
	}
}

func TestSettle_RoundsToMinorUnits(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp, data := post(t, ts.url+SettleProcedure, `{"members": [
		{"id": "a", "name": "A", "paid": 10.005, "share": "0"},
		{"id": "b", "name": "B", "paid": "0", "share": "10.005"}
	]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, data)
	}
	out := decodeSettleResponse(t, data)
	assertTransfers(t, out.Transfers, []models.Transfer{
		{From: "b", FromName: "B", To: "a", ToName: "A", Amount: "10.01"},
	})
}

func TestSettle_LargeAmounts(t *testing.T) {
	ts := setupTestServer(t, Options{})

	t.Run("in range", func(t *testing.T) {
		resp, err := ts.settle.CallUnary(context.Background(), connect.NewRequest(&models.SettleRequest{
			Members: []models.Member{
				{ID: "a", Name: "A", Paid: "10000000000000000", Share: "0"},
				{ID: "b", Name: "B", Paid: "0", Share: "10000000000000000"},
			},
		}))
		if err != nil {
			t.Fatalf("Settle failed: %v", err)
		}
		assertTransfers(t, resp.Msg.Transfers, []models.Transfer{
			{From: "b", FromName: "B", To: "a", ToName: "A", Amount: "10000000000000000.00"},
		})
	})

	tests := []struct {
		name string
		body string
	}{
		{name: "paid beyond int64 minor units", body: `{"members": [
			{"id": "a", "name": "A", "paid": "100000000000000000", "share": "0"},
			{"id": "b", "name": "B", "paid": "0", "share": "100000000000000000"}
		]}`},
		{name: "huge JSON number", body: `{"members": [
			{"id": "a", "name": "A", "paid": 1e30},
			{"id": "b", "name": "B", "share": 1e30}
		]}`},
		{name: "huge negative share", body: `{"members": [
			{"id": "a", "name": "A", "share": "-92233720368547758.08"}
		]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := post(t, ts.url+SettleProcedure, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", resp.StatusCode, data)
			}
			if !strings.Contains(string(data), `"code":"invalid_argument"`) {
				t.Errorf("expected invalid_argument code, got %s", data)
			}
			if !strings.Contains(string(data), "out of range") {
				t.Errorf("expected out of range message, got %s", data)
			}
		})
	}

	if runs, _, _ := ts.observer.counts(); runs != 1 {
		t.Errorf("rejected requests reached the calculator: runs=%d", runs)
	}
}

func TestSettle_Errors(t *testing.T) {
	ts := setupTestServer(t, Options{MaxMembers: 2})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "empty body", body: ``, wantStatus: http.StatusBadRequest, wantCode: "invalid_argument"},
		{name: "malformed JSON", body: `{"members": [`, wantStatus: http.StatusBadRequest, wantCode: "invalid_argument"},
		{name: "invalid amount", body: `{"members": [{"id": "a", "paid": "ten"}]}`, wantStatus: http.StatusBadRequest, wantCode: "invalid_argument"},
		{name: "boolean amount", body: `{"members": [{"id": "a", "paid": true}]}`, wantStatus: http.StatusBadRequest, wantCode: "invalid_argument"},
		{
			name: "too many members",
			body: `{"members": [
				{"id": "a", "paid": "1"}, {"id": "b", "share": "1"}, {"id": "c"}
			]}`,
			wantStatus: http.StatusTooManyRequests,
			wantCode:   "resource_exhausted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := post(t, ts.url+SettleProcedure, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, tt.wantStatus, data)
			}
			var errResp struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(data, &errResp); err != nil {
				t.Fatalf("failed to decode error response %s: %v", data, err)
			}
			if errResp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", errResp.Code, tt.wantCode)
			}
			if errResp.Message == "" {
				t.Error("expected non-empty error message")
			}
		})
	}
}

func TestSettle_ClientErrorCodes(t *testing.T) {
	ts := setupTestServer(t, Options{MaxMembers: 2})

	tests := []struct {
		name    string
		members []models.Member
		want    connect.Code
	}{
		{
			name:    "invalid amount",
			members: []models.Member{{ID: "a", Paid: "12.3.4"}},
			want:    connect.CodeInvalidArgument,
		},
		{
			name:    "too many members",
			members: []models.Member{{ID: "a"}, {ID: "b"}, {ID: "c"}},
			want:    connect.CodeResourceExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.settle.CallUnary(context.Background(), connect.NewRequest(&models.SettleRequest{Members: tt.members}))
			if err == nil {
				t.Fatal("expected error")
			}

			var connectErr *connect.Error
			if !errors.As(err, &connectErr) {
				t.Fatalf("expected connect error, got %T", err)
			}
			if connectErr.Code() != tt.want {
				t.Errorf("code = %v, want %v", connectErr.Code(), tt.want)
			}
		})
	}
}

func TestSettle_MethodNotAllowed(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp, err := http.Get(ts.url + SettleProcedure)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestSettleExpenses(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp, data := post(t, ts.url+SettleExpensesProcedure, `{"expenses": [
		{
			"description": "Dinner at Italian Restaurant",
			"paid_by": {"id": "1", "name": "Alice"},
			"amount": "120.00",
			"participants": [
				{"id": "1", "name": "Alice"},
				{"id": "2", "name": "Bob"},
				{"id": "3", "name": "Charlie"},
				{"id": "4", "name": "David"}
			]
		},
		{
			"description": "Taxi Ride",
			"paid_by": {"id": "3", "name": "Charlie"},
			"amount": 30,
			"participants": [
				{"id": "2", "name": "Bob"},
				{"id": "3", "name": "Charlie"}
			],
			"shares": ["20", "10,00"]
		}
	]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, data)
	}

	out := decodeSettleResponse(t, data)

	// Alice: paid 120, share 30 → +90
	// Bob: share 30 + 20 → -50
	// Charlie: paid 30, share 30 + 10 → -10
	// David: share 30 → -30
	wantNets := map[string]string{"1": "90.00", "2": "-50.00", "3": "-10.00", "4": "-30.00"}
	if len(out.Balances) != 4 {
		t.Fatalf("balances: expected 4, got %d", len(out.Balances))
	}
	for _, b := range out.Balances {
		if b.Net != wantNets[b.Member] {
			t.Errorf("member %s net = %s, want %s", b.Member, b.Net, wantNets[b.Member])
		}
	}

	assertTransfers(t, out.Transfers, []models.Transfer{
		{From: "2", FromName: "Bob", To: "1", ToName: "Alice", Amount: "50.00"},
		{From: "4", FromName: "David", To: "1", ToName: "Alice", Amount: "30.00"},
		{From: "3", FromName: "Charlie", To: "1", ToName: "Alice", Amount: "10.00"},
	})
}

func TestSettleExpenses_Errors(t *testing.T) {
	ts := setupTestServer(t, Options{MaxExpenses: 2})

	alice := models.Participant{ID: "1", Name: "Alice"}
	bob := models.Participant{ID: "2", Name: "Bob"}

	tests := []struct {
		name     string
		expenses []models.Expense
		want     connect.Code
	}{
		{
			name:     "missing payer",
			expenses: []models.Expense{{Description: "Hotel", Amount: "450", Participants: []models.Participant{alice}}},
			want:     connect.CodeInvalidArgument,
		},
		{
			name:     "invalid amount",
			expenses: []models.Expense{{PaidBy: alice, Amount: "lots", Participants: []models.Participant{alice, bob}}},
			want:     connect.CodeInvalidArgument,
		},
		{
			name:     "amount out of range",
			expenses: []models.Expense{{PaidBy: alice, Amount: "100000000000000000", Participants: []models.Participant{alice, bob}}},
			want:     connect.CodeInvalidArgument,
		},
		{
			name: "totals overflow",
			expenses: []models.Expense{
				{PaidBy: alice, Amount: "30000000000000000", Participants: []models.Participant{alice, bob}},
				{PaidBy: alice, Amount: "30000000000000000", Participants: []models.Participant{alice, bob}},
			},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "too many expenses",
			expenses: []models.Expense{
				{PaidBy: alice, Amount: "1", Participants: []models.Participant{bob}},
				{PaidBy: alice, Amount: "1", Participants: []models.Participant{bob}},
				{PaidBy: alice, Amount: "1", Participants: []models.Participant{bob}},
			},
			want: connect.CodeResourceExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.expenses.CallUnary(context.Background(), connect.NewRequest(&models.SettleExpensesRequest{Expenses: tt.expenses}))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := connect.CodeOf(err); got != tt.want {
				t.Errorf("code = %v, want %v (%v)", got, tt.want, err)
			}
		})
	}

	if runs, _, _ := ts.observer.counts(); runs != 0 {
		t.Errorf("rejected requests reached the calculator: runs=%d", runs)
	}
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp, err := http.Get(ts.url + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"status":"ok"`) {
		t.Errorf("unexpected body %s", body)
	}
}
