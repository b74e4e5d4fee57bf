package core

import (
	"fmt"
	"sort"
	"strings"
)

// Unit is the time-bucket granularity for aggregation and period navigation.
type Unit string

const (
	UnitAll   Unit = "all"
	UnitDay   Unit = "day"
	UnitMonth Unit = "month"
	UnitYear  Unit = "year"
)

func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return UnitAll, nil
	case "day", "daily":
		return UnitDay, nil
	case "month", "monthly":
		return UnitMonth, nil
	case "year", "yearly":
		return UnitYear, nil
	default:
		return UnitAll, fmt.Errorf("unknown unit %q", s)
	}
}

// Key derives the bucket key for a timestamp: YYYY-MM-DD, YYYY-MM or YYYY.
// UnitAll has a single unkeyed bucket.
func (u Unit) Key(w When) string {
	switch u {
	case UnitDay:
		return w.Time.Format("2006-01-02")
	case UnitMonth:
		return w.Time.Format("2006-01")
	case UnitYear:
		return w.Time.Format("2006")
	default:
		return ""
	}
}

// BucketBalance is one point of a balance-over-time series.
type BucketBalance struct {
	Key     string `json:"key"`
	Balance int64  `json:"balance"`
}

// BalanceSeries buckets a recomputed (ascending) view by unit, keeping the
// last balance seen in each bucket. Buckets appear in first-seen order,
// which for ascending input is chronological order.
func BalanceSeries(recomputed []Transaction, u Unit) []BucketBalance {
	index := make(map[string]int)
	series := make([]BucketBalance, 0)
	for _, tx := range recomputed {
		key := u.Key(tx.Date)
		if i, ok := index[key]; ok {
			series[i].Balance = tx.Balance
			continue
		}
		index[key] = len(series)
		series = append(series, BucketBalance{Key: key, Balance: tx.Balance})
	}
	return series
}

// Totals sums income and expense amounts over a view. Not bucketed by time;
// callers restrict the input to a period first when needed.
func Totals(txs []Transaction) (income, expense int64) {
	for _, tx := range txs {
		if tx.Type == Income {
			income += tx.Amount
		} else {
			expense += tx.Amount
		}
	}
	return income, expense
}

// DefaultItemLabel stands in for transactions with an empty item label in
// per-item breakdowns.
const DefaultItemLabel = "(uncategorized)"

// ItemAmount is one row of a per-item breakdown.
type ItemAmount struct {
	Item   string `json:"item"`
	Amount int64  `json:"amount"`
}

// BreakdownByItem sums amounts per item label, split by type, each sorted
// descending by amount. Ties keep first-seen order.
func BreakdownByItem(txs []Transaction) (income, expense []ItemAmount) {
	return sumByItem(txs, Income), sumByItem(txs, Expense)
}

func sumByItem(txs []Transaction, t Type) []ItemAmount {
	index := make(map[string]int)
	rows := make([]ItemAmount, 0)
	for _, tx := range txs {
		if tx.Type != t {
			continue
		}
		label := strings.TrimSpace(tx.Item)
		if label == "" {
			label = DefaultItemLabel
		}
		if i, ok := index[label]; ok {
			rows[i].Amount += tx.Amount
			continue
		}
		index[label] = len(rows)
		rows = append(rows, ItemAmount{Item: label, Amount: tx.Amount})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Amount > rows[j].Amount })
	return rows
}

// PeriodFilter restricts a view to one concrete period value at the given
// unit; UnitAll or an empty period is a no-op.
func PeriodFilter(txs []Transaction, u Unit, period string) []Transaction {
	if u == UnitAll || period == "" {
		return txs
	}
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if u.Key(tx.Date) == period {
			out = append(out, tx)
		}
	}
	return out
}
