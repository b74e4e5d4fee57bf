package sheets

import (
	"context"

	"kakeibo/internal/core"
)

// AuditEntry is one row of the spreadsheet mirror: the operation that
// happened plus the transaction it happened to. For deletions the
// transaction carries only the id.
type AuditEntry struct {
	Op string
	Tx core.Transaction
}

// Ports for outbound adapters.
type AuditAppender interface {
	Append(ctx context.Context, entry AuditEntry) (rowRef string, err error)
}
