package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"kakeibo/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// transactionPayload is the wire shape of a transaction. It duplicates the
// account under the legacy fundItem key that older clients still read.
type transactionPayload struct {
	ID       int64     `json:"id"`
	Account  string    `json:"account"`
	FundItem string    `json:"fundItem"`
	Date     core.When `json:"date"`
	Item     string    `json:"item"`
	Type     core.Type `json:"type"`
	Amount   int64     `json:"amount"`
	Balance  int64     `json:"balance"`
}

func toPayload(tx core.Transaction) transactionPayload {
	return transactionPayload{
		ID:       tx.ID,
		Account:  tx.Account,
		FundItem: tx.Account,
		Date:     tx.Date,
		Item:     tx.Item,
		Type:     tx.Type,
		Amount:   tx.Amount,
		Balance:  tx.Balance,
	}
}

func toPayloads(txs []core.Transaction) []transactionPayload {
	out := make([]transactionPayload, len(txs))
	for i, tx := range txs {
		out[i] = toPayload(tx)
	}
	return out
}

// transactionRequest is the mutable part of a transaction as submitted by
// clients. fundItem is accepted as an alias for account; time, when present,
// adds a clock to a date-only date.
type transactionRequest struct {
	Account  string `json:"account"`
	FundItem string `json:"fundItem"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Item     string `json:"item"`
	Type     string `json:"type"`
	Amount   int64  `json:"amount"`
}

func (req *transactionRequest) toTransaction() (core.Transaction, error) {
	account := strings.TrimSpace(req.Account)
	if account == "" {
		account = strings.TrimSpace(req.FundItem)
	}

	date := strings.TrimSpace(req.Date)
	if t := strings.TrimSpace(req.Time); t != "" {
		date = date + " " + t
	}
	when, err := core.ParseWhen(date)
	if err != nil {
		return core.Transaction{}, err
	}

	tx := core.Transaction{
		Account: account,
		Date:    when,
		Item:    sanitizeInput(req.Item),
		Type:    core.Type(strings.TrimSpace(req.Type)),
		Amount:  req.Amount,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

// sanitizeInput trims whitespace and strips control characters.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// parseSelection builds the account selection from query parameters. The
// accounts parameter (comma-separated, possibly empty) switches to
// multi-select mode; otherwise account applies, defaulting to all.
func (s *Server) parseSelection(r *http.Request) (core.Selection, error) {
	q := r.URL.Query()

	if q.Has("accounts") {
		raw := q.Get("accounts")
		var selected []string
		if strings.TrimSpace(raw) != "" {
			for _, name := range strings.Split(raw, ",") {
				if name = strings.TrimSpace(name); name != "" {
					selected = append(selected, name)
				}
			}
		}
		known, err := s.cachedAccounts(r)
		if err != nil {
			return core.Selection{}, err
		}
		return core.SelectAccounts(selected, known), nil
	}

	account := strings.TrimSpace(q.Get("account"))
	if account == "" {
		account = core.AllAccounts
	}
	return core.SelectAccount(account), nil
}
