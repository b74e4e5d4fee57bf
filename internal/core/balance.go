package core

import "sort"

type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// ParseDirection returns Descending (the default display order) for empty
// input and rejects anything that is not asc/desc.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case "":
		return Descending, true
	case Ascending, Descending:
		return Direction(s), true
	default:
		return Descending, false
	}
}

// Recompute derives running balances for one filtered view: stable ascending
// sort by full date-time, then a left fold of type-signed amounts starting at
// zero. The running total always restarts for the view at hand, so changing
// the filter changes every balance value. Equal timestamps keep their
// original relative order.
func Recompute(txs []Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Time.Before(out[j].Date.Time)
	})

	var running int64
	for i := range out {
		running += out[i].Type.Signed(out[i].Amount)
		out[i].Balance = running
	}
	return out
}

// CurrentBalance is the final balance of a recomputed view; zero for an
// empty view.
func CurrentBalance(recomputed []Transaction) int64 {
	if len(recomputed) == 0 {
		return 0
	}
	return recomputed[len(recomputed)-1].Balance
}

// OrderForDisplay reorders an already balance-annotated sequence without
// re-running the fold.
func OrderForDisplay(txs []Transaction, dir Direction) []Transaction {
	out := make([]Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		if dir == Ascending {
			return out[i].Date.Time.Before(out[j].Date.Time)
		}
		return out[i].Date.Time.After(out[j].Date.Time)
	})
	return out
}
