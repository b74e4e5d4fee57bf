// Package ledgercsv reads and writes the ledger interchange format used by
// backups and bulk import.
package ledgercsv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"kakeibo/internal/core"
)

// Header is the canonical column order. Import requires it verbatim.
var Header = []string{"id", "account", "date", "item", "type", "amount", "balance"}

// Export writes the full ledger. The balance column is a courtesy for
// spreadsheet readers: it is recomputed per account at export time and
// ignored again on import.
func Export(w io.Writer, txs []core.Transaction) error {
	byAccount := make(map[string][]core.Transaction)
	for _, tx := range txs {
		byAccount[tx.Account] = append(byAccount[tx.Account], tx)
	}
	balances := make(map[int64]int64, len(txs))
	for _, group := range byAccount {
		for _, tx := range core.Recompute(group) {
			balances[tx.ID] = tx.Balance
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, tx := range txs {
		record := []string{
			strconv.FormatInt(tx.ID, 10),
			tx.Account,
			tx.Date.String(),
			tx.Item,
			string(tx.Type),
			strconv.FormatInt(tx.Amount, 10),
			strconv.FormatInt(balances[tx.ID], 10),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// RowError reports a validation failure on a single data row. Row numbers
// count from 1 at the first row after the header.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

// RowErrors joins per-row failures so a whole bad file reports all of its
// problems at once.
type RowErrors []RowError

func (e RowErrors) Error() string {
	msgs := make([]string, len(e))
	for i, re := range e {
		msgs[i] = re.Error()
	}
	return strings.Join(msgs, "; ")
}

// Import parses a ledger file. The id and balance columns are tolerated but
// discarded: identity is reassigned by storage and balance is derived.
// Validation failures on individual rows are collected into a RowErrors so
// the caller can reject the file without applying any of it.
func Import(r io.Reader) ([]core.Transaction, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	var (
		txs     []core.Transaction
		rowErrs RowErrors
	)
	for row := 1; ; row++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}

		tx, err := parseRecord(record)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: row, Err: err})
			continue
		}
		txs = append(txs, tx)
	}

	if len(rowErrs) > 0 {
		return nil, rowErrs
	}
	return txs, nil
}

func checkHeader(header []string) error {
	if len(header) != len(Header) {
		return fmt.Errorf("expected %d columns, got %d", len(Header), len(header))
	}
	for i, want := range Header {
		if strings.TrimSpace(strings.ToLower(header[i])) != want {
			return fmt.Errorf("column %d: expected %q, got %q", i+1, want, header[i])
		}
	}
	return nil
}

func parseRecord(record []string) (core.Transaction, error) {
	if len(record) != len(Header) {
		return core.Transaction{}, fmt.Errorf("expected %d fields, got %d", len(Header), len(record))
	}

	when, err := core.ParseWhen(strings.TrimSpace(record[2]))
	if err != nil {
		return core.Transaction{}, err
	}

	amount, err := strconv.ParseInt(strings.TrimSpace(record[5]), 10, 64)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("invalid amount %q", record[5])
	}

	tx := core.Transaction{
		Account: strings.TrimSpace(record[1]),
		Date:    when,
		Item:    strings.TrimSpace(record[3]),
		Type:    core.Type(strings.TrimSpace(record[4])),
		Amount:  amount,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}
