// Package memory holds an in-memory audit appender for tests and local runs
// without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"kakeibo/internal/sheets"
)

type Appender struct {
	mu      sync.Mutex
	entries []sheets.AuditEntry
}

var _ sheets.AuditAppender = (*Appender)(nil)

func New() *Appender {
	return &Appender{}
}

func (a *Appender) Append(_ context.Context, entry sheets.AuditEntry) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return fmt.Sprintf("row %d", len(a.entries)), nil
}

// Entries returns a copy of everything appended so far.
func (a *Appender) Entries() []sheets.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]sheets.AuditEntry, len(a.entries))
	copy(out, a.entries)
	return out
}
