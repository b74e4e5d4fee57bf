package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"kakeibo/internal/core"
	"kakeibo/internal/store"
	"kakeibo/internal/store/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, op string, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, op)
	return nil
}

func (p *recordingPublisher) ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	copy(out, p.events)
	return out
}

func newTestServer(t *testing.T, st store.Store) (*Server, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	s := NewServer("127.0.0.1:0", st, Options{
		Publisher:  pub,
		BackupDir:  t.TempDir(),
		BackupKeep: 2,
		LogDir:     t.TempDir(),
	})
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, pub
}

func seed(t *testing.T, st *memory.Store, account, date, item string, typ core.Type, amount int64) {
	t.Helper()
	w, err := core.ParseWhen(date)
	if err != nil {
		t.Fatal(err)
	}
	st.Seed(core.Transaction{Account: account, Date: w, Item: item, Type: typ, Amount: amount})
}

func doJSON(t *testing.T, s *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestListTransactionsRecomputesPerView(t *testing.T) {
	st := memory.New()
	seed(t, st, "main", "2025-06-01", "salary", core.Income, 300000)
	seed(t, st, "main", "2025-06-02", "rent", core.Expense, 80000)
	seed(t, st, "card", "2025-06-03", "dining", core.Expense, 4000)
	s, _ := newTestServer(t, st)

	var resp struct {
		Transactions []transactionPayload `json:"transactions"`
		Balance      int64                `json:"balance"`
	}

	rec := doJSON(t, s, http.MethodGet, "/api/transactions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &resp)
	if len(resp.Transactions) != 3 {
		t.Fatalf("got %d transactions", len(resp.Transactions))
	}
	if resp.Balance != 216000 {
		t.Errorf("merged balance = %d", resp.Balance)
	}
	// Default display order is newest first.
	if resp.Transactions[0].Item != "dining" {
		t.Errorf("first item = %q", resp.Transactions[0].Item)
	}
	if resp.Transactions[0].FundItem != "card" {
		t.Errorf("fundItem alias = %q", resp.Transactions[0].FundItem)
	}

	// Narrowing to one account restarts the fold from zero.
	rec = doJSON(t, s, http.MethodGet, "/api/transactions?account=card", nil)
	decode(t, rec, &resp)
	if len(resp.Transactions) != 1 || resp.Balance != -4000 {
		t.Errorf("card view: %d txs, balance %d", len(resp.Transactions), resp.Balance)
	}
}

func TestListTransactionsMultiSelect(t *testing.T) {
	st := memory.New()
	seed(t, st, "main", "2025-06-01", "salary", core.Income, 300000)
	seed(t, st, "card", "2025-06-02", "dining", core.Expense, 4000)
	s, _ := newTestServer(t, st)

	var resp struct {
		Transactions []transactionPayload `json:"transactions"`
		Balance      int64                `json:"balance"`
	}

	// Empty multi-selection means nothing selected, not everything.
	rec := doJSON(t, s, http.MethodGet, "/api/transactions?accounts=", nil)
	decode(t, rec, &resp)
	if len(resp.Transactions) != 0 || resp.Balance != 0 {
		t.Errorf("empty selection: %d txs, balance %d", len(resp.Transactions), resp.Balance)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/transactions?accounts=main", nil)
	decode(t, rec, &resp)
	if len(resp.Transactions) != 1 || resp.Balance != 300000 {
		t.Errorf("main-only selection: %d txs, balance %d", len(resp.Transactions), resp.Balance)
	}

	// Selecting every known account behaves like no filter.
	rec = doJSON(t, s, http.MethodGet, "/api/transactions?accounts=main,card", nil)
	decode(t, rec, &resp)
	if len(resp.Transactions) != 2 {
		t.Errorf("full selection: %d txs", len(resp.Transactions))
	}
}

func TestListTransactionsSearchAndPeriod(t *testing.T) {
	st := memory.New()
	seed(t, st, "main", "2025-05-20", "groceries", core.Expense, 8000)
	seed(t, st, "main", "2025-06-01", "salary", core.Income, 300000)
	seed(t, st, "main", "2025-06-05", "cafe latte", core.Expense, 500)
	s, _ := newTestServer(t, st)

	var resp struct {
		Transactions []transactionPayload `json:"transactions"`
	}

	rec := doJSON(t, s, http.MethodGet, "/api/transactions?search=CAFE", nil)
	decode(t, rec, &resp)
	if len(resp.Transactions) != 1 || resp.Transactions[0].Item != "cafe latte" {
		t.Errorf("search result: %+v", resp.Transactions)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/transactions?unit=month&period=2025-06", nil)
	decode(t, rec, &resp)
	if len(resp.Transactions) != 2 {
		t.Errorf("period view: %d txs", len(resp.Transactions))
	}

	rec = doJSON(t, s, http.MethodGet, "/api/transactions?order=sideways", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad order status = %d", rec.Code)
	}
	rec = doJSON(t, s, http.MethodGet, "/api/transactions?unit=fortnight", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad unit status = %d", rec.Code)
	}
}

func TestCreateTransaction(t *testing.T) {
	st := memory.New()
	s, pub := newTestServer(t, st)

	rec := doJSON(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"account": "main",
		"date":    "2025-06-01 12:30",
		"item":    "salary",
		"type":    "income",
		"amount":  300000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Message     string             `json:"message"`
		Transaction transactionPayload `json:"transaction"`
	}
	decode(t, rec, &resp)
	if resp.Transaction.ID != 1 || resp.Transaction.Account != "main" {
		t.Errorf("created = %+v", resp.Transaction)
	}
	if got := pub.ops(); len(got) != 1 || got[0] != "created" {
		t.Errorf("published ops = %v", got)
	}
}

func TestCreateTransactionFundItemAlias(t *testing.T) {
	st := memory.New()
	s, _ := newTestServer(t, st)

	rec := doJSON(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"fundItem": "legacy",
		"date":     "2025-06-01",
		"item":     "salary",
		"type":     "income",
		"amount":   100,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Transaction transactionPayload `json:"transaction"`
	}
	decode(t, rec, &resp)
	if resp.Transaction.Account != "legacy" {
		t.Errorf("account = %q", resp.Transaction.Account)
	}
}

func TestCreateTransactionSeparateTimeField(t *testing.T) {
	st := memory.New()
	s, _ := newTestServer(t, st)

	rec := doJSON(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"account": "main",
		"date":    "2025-06-10",
		"time":    "09:30",
		"item":    "coffee",
		"type":    "expense",
		"amount":  500,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Transaction transactionPayload `json:"transaction"`
	}
	decode(t, rec, &resp)
	if got := resp.Transaction.Date.String(); got != "2025-06-10 09:30:00" {
		t.Errorf("date = %q, time field dropped", got)
	}

	stored, err := st.GetTransaction(context.Background(), resp.Transaction.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.Date.HasClock || stored.Date.String() != "2025-06-10 09:30:00" {
		t.Errorf("stored date = %q", stored.Date.String())
	}

	// A date that already carries a clock still works without time.
	rec = doJSON(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"account": "main", "date": "2025-06-11 18:00", "item": "dinner", "type": "expense", "amount": 900,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	st := memory.New()
	s, pub := newTestServer(t, st)

	cases := []map[string]any{
		{"account": "", "date": "2025-06-01", "item": "x", "type": "income", "amount": 100},
		{"account": "main", "date": "June 1st", "item": "x", "type": "income", "amount": 100},
		{"account": "main", "date": "2025-06-01", "item": "", "type": "income", "amount": 100},
		{"account": "main", "date": "2025-06-01", "item": "x", "type": "transfer", "amount": 100},
		{"account": "main", "date": "2025-06-01", "item": "x", "type": "income", "amount": 0},
	}
	for i, body := range cases {
		rec := doJSON(t, s, http.MethodPost, "/api/transactions", body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("case %d: status %d: %s", i, rec.Code, rec.Body.String())
		}
	}
	if len(pub.ops()) != 0 {
		t.Error("rejected writes must not publish events")
	}
}

func TestUpdateTransaction(t *testing.T) {
	st := memory.New()
	seed(t, st, "main", "2025-06-01", "salary", core.Income, 300000)
	s, pub := newTestServer(t, st)

	body := map[string]any{
		"account": "card", "date": "2025-06-02", "item": "bonus", "type": "income", "amount": 500,
	}

	rec := doJSON(t, s, http.MethodPut, "/api/transactions/1", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	got, err := st.GetTransaction(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Account != "card" || got.Item != "bonus" || got.Amount != 500 {
		t.Errorf("stored = %+v", got)
	}

	rec = doJSON(t, s, http.MethodPatch, "/api/transactions/99", body)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d", rec.Code)
	}
	if got := pub.ops(); len(got) != 1 || got[0] != "updated" {
		t.Errorf("published ops = %v", got)
	}
}

func TestDeleteTransaction(t *testing.T) {
	st := memory.New()
	seed(t, st, "main", "2025-06-01", "salary", core.Income, 300000)
	s, pub := newTestServer(t, st)

	rec := doJSON(t, s, http.MethodDelete, "/api/transactions/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, s, http.MethodDelete, "/api/transactions/1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d", rec.Code)
	}
	if got := pub.ops(); len(got) != 1 || got[0] != "deleted" {
		t.Errorf("published ops = %v", got)
	}
}

func TestRegistriesReflectWrites(t *testing.T) {
	st := memory.New()
	seed(t, st, "main", "2025-06-01", "salary", core.Income, 300000)
	s, _ := newTestServer(t, st)

	var accounts struct {
		Accounts []string `json:"accounts"`
	}
	rec := doJSON(t, s, http.MethodGet, "/api/accounts", nil)
	decode(t, rec, &accounts)
	if len(accounts.Accounts) != 1 || accounts.Accounts[0] != "main" {
		t.Errorf("accounts = %v", accounts.Accounts)
	}

	// A write invalidates the cached registry.
	doJSON(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"account": "card", "date": "2025-06-02", "item": "dining", "type": "expense", "amount": 4000,
	})
	rec = doJSON(t, s, http.MethodGet, "/api/accounts", nil)
	decode(t, rec, &accounts)
	if len(accounts.Accounts) != 2 {
		t.Errorf("accounts after write = %v", accounts.Accounts)
	}

	var items struct {
		Items []string `json:"items"`
	}
	rec = doJSON(t, s, http.MethodGet, "/api/items?account=card", nil)
	decode(t, rec, &items)
	if len(items.Items) != 1 || items.Items[0] != "dining" {
		t.Errorf("items = %v", items.Items)
	}
}

func TestBalanceHistoryCarriesForward(t *testing.T) {
	st := memory.New()
	seed(t, st, "main", "2025-04-01", "salary", core.Income, 1000)
	seed(t, st, "main", "2025-06-01", "rent", core.Expense, 300)
	seed(t, st, "card", "2025-05-10", "dining", core.Expense, 50)
	s, _ := newTestServer(t, st)

	rec := doJSON(t, s, http.MethodGet, "/api/balance_history?unit=month", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Accounts []string           `json:"accounts"`
		Dates    []string           `json:"dates"`
		Balances map[string][]int64 `json:"balances"`
	}
	decode(t, rec, &resp)

	wantDates := []string{"2025-04", "2025-05", "2025-06"}
	if len(resp.Dates) != 3 {
		t.Fatalf("dates = %v", resp.Dates)
	}
	for i, d := range wantDates {
		if resp.Dates[i] != d {
			t.Errorf("dates[%d] = %q, want %q", i, resp.Dates[i], d)
		}
	}

	// main has no May movement, so April's balance carries into May.
	if got := resp.Balances["main"]; len(got) != 3 || got[0] != 1000 || got[1] != 1000 || got[2] != 700 {
		t.Errorf("main series = %v", got)
	}
	// card has nothing before May.
	if got := resp.Balances["card"]; len(got) != 3 || got[0] != 0 || got[1] != -50 || got[2] != -50 {
		t.Errorf("card series = %v", got)
	}
}

func TestSummary(t *testing.T) {
	st := memory.New()
	seed(t, st, "main", "2025-06-01", "salary", core.Income, 300000)
	seed(t, st, "main", "2025-06-02", "rent", core.Expense, 80000)
	seed(t, st, "main", "2025-06-03", "rent", core.Expense, 80000)
	seed(t, st, "main", "2025-07-01", "salary", core.Income, 300000)
	s, _ := newTestServer(t, st)

	var resp struct {
		Income        int64             `json:"income"`
		Expense       int64             `json:"expense"`
		Net           int64             `json:"net"`
		ExpenseByItem []core.ItemAmount `json:"expense_by_item"`
	}

	rec := doJSON(t, s, http.MethodGet, "/api/summary?unit=month&period=2025-06", nil)
	decode(t, rec, &resp)
	if resp.Income != 300000 || resp.Expense != 160000 || resp.Net != 140000 {
		t.Errorf("summary = %+v", resp)
	}
	if len(resp.ExpenseByItem) != 1 || resp.ExpenseByItem[0].Item != "rent" || resp.ExpenseByItem[0].Amount != 160000 {
		t.Errorf("expense breakdown = %v", resp.ExpenseByItem)
	}
}

func TestBackupCSV(t *testing.T) {
	st := memory.New()
	seed(t, st, "main", "2025-06-01", "salary", core.Income, 300000)
	s, _ := newTestServer(t, st)

	rec := doJSON(t, s, http.MethodGet, "/api/backup_csv", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "kakeibo_backup_") {
		t.Errorf("content disposition = %q", cd)
	}
	if !strings.HasPrefix(rec.Body.String(), "id,account,date,item,type,amount,balance") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func importRequest(t *testing.T, csv, mode string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "ledger.csv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(csv)); err != nil {
		t.Fatal(err)
	}
	if mode != "" {
		if err := mw.WriteField("mode", mode); err != nil {
			t.Fatal(err)
		}
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/import_csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestImportCSVAppendAndReplace(t *testing.T) {
	st := memory.New()
	seed(t, st, "old", "2025-01-01", "stale", core.Income, 1)
	s, pub := newTestServer(t, st)

	csv := "id,account,date,item,type,amount,balance\n" +
		"1,main,2025-06-01,salary,income,300000,300000\n" +
		"2,main,2025-06-02,rent,expense,80000,220000\n"

	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, importRequest(t, csv, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("append status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ImportedCount int `json:"imported_count"`
	}
	decode(t, rec, &resp)
	if resp.ImportedCount != 2 {
		t.Errorf("imported_count = %d", resp.ImportedCount)
	}
	all, _ := st.ListTransactions(context.Background(), "")
	if len(all) != 3 {
		t.Errorf("append left %d transactions", len(all))
	}

	rec = httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, importRequest(t, csv, "replace"))
	if rec.Code != http.StatusOK {
		t.Fatalf("replace status %d: %s", rec.Code, rec.Body.String())
	}
	all, _ = st.ListTransactions(context.Background(), "")
	if len(all) != 2 || all[0].Account != "main" {
		t.Errorf("replace left %+v", all)
	}

	ops := pub.ops()
	if len(ops) == 0 || ops[len(ops)-1] != "replaced" {
		t.Errorf("published ops = %v", ops)
	}
}

// appendFailStore refuses batch appends, standing in for a backend that
// fails mid-import.
type appendFailStore struct {
	*memory.Store
}

func (s *appendFailStore) AppendAll(context.Context, []core.Transaction) ([]core.Transaction, error) {
	return nil, errDiskFull
}

var errDiskFull = errors.New("disk full")

func TestImportCSVAppendIsAtomic(t *testing.T) {
	st := &appendFailStore{Store: memory.New()}
	s, pub := newTestServer(t, st)

	csv := "id,account,date,item,type,amount,balance\n" +
		"1,main,2025-06-01,salary,income,300000,300000\n" +
		"2,main,2025-06-02,rent,expense,80000,220000\n"

	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, importRequest(t, csv, ""))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	// A failed append commits nothing and announces nothing.
	all, _ := st.ListTransactions(context.Background(), "")
	if len(all) != 0 {
		t.Errorf("failed append left %d transactions behind", len(all))
	}
	if ops := pub.ops(); len(ops) != 0 {
		t.Errorf("published ops = %v", ops)
	}
}

func TestImportCSVRejectsBadRows(t *testing.T) {
	st := memory.New()
	s, _ := newTestServer(t, st)

	csv := "id,account,date,item,type,amount,balance\n" +
		"1,main,2025-06-01,salary,income,300000,300000\n" +
		"2,main,bad-date,rent,expense,80000,220000\n"

	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, importRequest(t, csv, ""))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "row 2") {
		t.Errorf("error should name the row: %s", rec.Body.String())
	}

	// Nothing from a rejected file may be applied.
	all, _ := st.ListTransactions(context.Background(), "")
	if len(all) != 0 {
		t.Errorf("partial import applied: %+v", all)
	}
}

func TestClientLogAndLogout(t *testing.T) {
	st := memory.New()
	s, _ := newTestServer(t, st)

	rec := doJSON(t, s, http.MethodPost, "/api/log", map[string]string{
		"level": "warn", "message": "slow render", "component": "chart",
	})
	if rec.Code != http.StatusNoContent {
		t.Errorf("log status = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/logout", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}
	var resp map[string]bool
	decode(t, rec, &resp)
	if !resp["success"] {
		t.Error("logout should report success")
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "session" || cookies[0].MaxAge != -1 {
		t.Errorf("cookies = %+v", cookies)
	}
}

func TestDownloadLog(t *testing.T) {
	st := memory.New()
	logDir := t.TempDir()
	s := NewServer("127.0.0.1:0", st, Options{LogDir: logDir})
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	rec := doJSON(t, s, http.MethodGet, "/api/download_log", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("no log file yet, status = %d", rec.Code)
	}

	if err := os.WriteFile(filepath.Join(logDir, "kakeibo.log"), []byte("level=INFO msg=up\n"), 0644); err != nil {
		t.Fatal(err)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/download_log", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "kakeibo.log") {
		t.Errorf("content disposition = %q", cd)
	}
	if !strings.Contains(rec.Body.String(), "msg=up") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHealthEndpoints(t *testing.T) {
	st := memory.New()
	s, _ := newTestServer(t, st)

	rec := doJSON(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz: %d %q", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, s, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ready" {
		t.Errorf("readyz: %d %q", rec.Code, rec.Body.String())
	}
}
