// Package google mirrors ledger changes to a Google Sheets spreadsheet using
// Service Account credentials.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"kakeibo/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	auditSheet    string
}

var _ sheets.AuditAppender = (*Client)(nil)

// New creates a Sheets client for the given spreadsheet. sheetBase is the
// sheet name without the year; the current year is prefixed so each year
// gets its own tab, matching how the spreadsheet is organized by hand.
func New(ctx context.Context, spreadsheetID, sheetBase string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(sheetBase) == "" {
		sheetBase = "Ledger"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		auditSheet:    yearPrefixedName(sheetBase, time.Now().Year()),
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account
// credentials from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE,
// or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

// Append writes one audit row and returns its range reference.
func (c *Client) Append(ctx context.Context, entry sheets.AuditEntry) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	// Find the next empty row from the current sheet height.
	rng := fmt.Sprintf("%s!A:A", c.auditSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get sheet dimensions for %s: %w", c.auditSheet, err)
	}
	nextRow := len(resp.Values) + 1

	row := auditRow(entry)
	dataRange := fmt.Sprintf("%s!A%d:H%d", c.auditSheet, nextRow, nextRow)
	vr := &gsheet.ValueRange{Values: [][]any{row}}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", dataRange, err)
	}

	slog.InfoContext(ctx, "Mirrored ledger change",
		"op", entry.Op,
		"id", entry.Tx.ID,
		"range", dataRange)

	return dataRange, nil
}

// auditRow lays out recorded-at, op, id, account, date, item, type, amount.
func auditRow(entry sheets.AuditEntry) []any {
	tx := entry.Tx
	return []any{
		time.Now().UTC().Format(time.RFC3339),
		entry.Op,
		tx.ID,
		tx.Account,
		tx.Date.String(),
		tx.Item,
		string(tx.Type),
		tx.Amount,
	}
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a
// 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
