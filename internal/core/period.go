package core

import "sort"

// Navigator is a bounded cursor over the distinct period keys present in the
// currently filtered data. It never wraps and never steps past the data's
// actual range.
type Navigator struct {
	Unit      Unit
	Current   string
	Available []string
}

// NewNavigator starts inert: no unit, no period restriction.
func NewNavigator() Navigator {
	return Navigator{Unit: UnitAll}
}

// AvailablePeriods lists the distinct bucket keys present in a view,
// ascending. Lexical order equals chronological order for these key formats.
func AvailablePeriods(txs []Transaction, u Unit) []string {
	if u == UnitAll {
		return nil
	}
	seen := make(map[string]struct{})
	keys := make([]string, 0)
	for _, tx := range txs {
		key := u.Key(tx.Date)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// SetUnit switches the display unit, recomputing the available periods from
// the full (non-period-restricted) filtered view and snapping the cursor to
// the latest one.
func (n *Navigator) SetUnit(u Unit, txs []Transaction) {
	n.Unit = u
	n.Available = AvailablePeriods(txs, u)
	n.Current = ""
	if len(n.Available) > 0 {
		n.Current = n.Available[len(n.Available)-1]
	}
}

func (n *Navigator) index() int {
	for i, key := range n.Available {
		if key == n.Current {
			return i
		}
	}
	return -1
}

// CanNavigate is the pure boundary check; it agrees exactly with Navigate.
func (n *Navigator) CanNavigate(direction int) bool {
	if n.Unit == UnitAll {
		return false
	}
	i := n.index()
	if i < 0 {
		return false
	}
	target := i + direction
	return target >= 0 && target < len(n.Available)
}

// Navigate moves the cursor by direction (-1 or +1). Out-of-bounds moves are
// rejected and leave the cursor unchanged.
func (n *Navigator) Navigate(direction int) bool {
	if !n.CanNavigate(direction) {
		return false
	}
	n.Current = n.Available[n.index()+direction]
	return true
}
