package http

import (
	"net/http"
	"sort"
	"strings"

	"kakeibo/internal/core"
)

// handleBalanceHistory returns a per-account balance series over shared time
// buckets. Each account folds on its own; buckets with no movement carry the
// previous balance forward so every series has a value for every date.
func (s *Server) handleBalanceHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	unit, err := core.ParseUnit(q.Get("unit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if unit == core.UnitAll {
		unit = core.UnitMonth
	}

	sel, err := s.parseSelection(r)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Account registry error", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve accounts")
		return
	}

	txs, err := s.store.ListTransactions(r.Context(), "")
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List transactions error", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}
	view := core.Filter(txs, sel, "")

	byAccount := make(map[string][]core.Transaction)
	accounts := make([]string, 0)
	for _, tx := range view {
		if _, ok := byAccount[tx.Account]; !ok {
			accounts = append(accounts, tx.Account)
		}
		byAccount[tx.Account] = append(byAccount[tx.Account], tx)
	}
	sort.Strings(accounts)

	series := make(map[string]map[string]int64, len(accounts))
	dateSet := make(map[string]struct{})
	for account, group := range byAccount {
		points := core.BalanceSeries(core.Recompute(group), unit)
		byKey := make(map[string]int64, len(points))
		for _, p := range points {
			byKey[p.Key] = p.Balance
			dateSet[p.Key] = struct{}{}
		}
		series[account] = byKey
	}

	dates := make([]string, 0, len(dateSet))
	for key := range dateSet {
		dates = append(dates, key)
	}
	// Bucket keys are zero-padded, so lexical order is chronological.
	sort.Strings(dates)

	balances := make(map[string][]int64, len(accounts))
	for _, account := range accounts {
		row := make([]int64, len(dates))
		var last int64
		for i, date := range dates {
			if v, ok := series[account][date]; ok {
				last = v
			}
			row[i] = last
		}
		balances[account] = row
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": accounts,
		"dates":    dates,
		"balances": balances,
	})
}

// handleSummary returns income/expense totals and per-item breakdowns for
// the filtered, optionally period-restricted view.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	unit, err := core.ParseUnit(q.Get("unit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sel, err := s.parseSelection(r)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Account registry error", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve accounts")
		return
	}

	txs, err := s.store.ListTransactions(r.Context(), "")
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List transactions error", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}

	view := core.Filter(txs, sel, q.Get("search"))
	view = core.PeriodFilter(view, unit, strings.TrimSpace(q.Get("period")))

	income, expense := core.Totals(view)
	incomeByItem, expenseByItem := core.BreakdownByItem(view)

	writeJSON(w, http.StatusOK, map[string]any{
		"income":          income,
		"expense":         expense,
		"net":             income - expense,
		"income_by_item":  incomeByItem,
		"expense_by_item": expenseByItem,
	})
}
