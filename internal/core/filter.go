package core

import (
	"strconv"
	"strings"
)

// Selection is the account part of the filter state: either a single account
// name (possibly the AllAccounts sentinel) or a multi-select set together
// with the full set of known accounts.
type Selection struct {
	multi    bool
	account  string
	selected map[string]struct{}
	known    int // size of the known-account universe
}

// SelectAccount builds a single-mode selection.
func SelectAccount(name string) Selection {
	return Selection{account: name}
}

// SelectAccounts builds a multi-mode selection. An empty selected set means
// "nothing selected" (empty view), not "show all"; selecting every known
// account disables filtering.
func SelectAccounts(selected, known []string) Selection {
	set := make(map[string]struct{}, len(selected))
	for _, name := range selected {
		set[name] = struct{}{}
	}
	return Selection{multi: true, selected: set, known: len(dedup(known))}
}

func dedup(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := names[:0:0]
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Empty reports whether the selection excludes everything.
func (s Selection) Empty() bool {
	return s.multi && len(s.selected) == 0
}

func (s Selection) matches(account string) bool {
	if !s.multi {
		return s.account == AllAccounts || s.account == account
	}
	if len(s.selected) == 0 {
		return false
	}
	if len(s.selected) >= s.known && s.known > 0 {
		return true
	}
	_, ok := s.selected[account]
	return ok
}

// Filter applies the account selection and then the free-text search to the
// raw transaction set. Pure: the input slice is never mutated.
func Filter(txs []Transaction, sel Selection, query string) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if sel.matches(tx.Account) {
			out = append(out, tx)
		}
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return out
	}
	needle := strings.ToLower(query)
	matched := out[:0]
	for _, tx := range out {
		if searchMatch(tx, needle) {
			matched = append(matched, tx)
		}
	}
	return matched
}

// searchMatch checks a lowercased substring against item, account, the raw
// date string and the decimal form of the amount.
func searchMatch(tx Transaction, needle string) bool {
	return strings.Contains(strings.ToLower(tx.Item), needle) ||
		strings.Contains(strings.ToLower(tx.Account), needle) ||
		strings.Contains(tx.Date.String(), needle) ||
		strings.Contains(strconv.FormatInt(tx.Amount, 10), needle)
}
