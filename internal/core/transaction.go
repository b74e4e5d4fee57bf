package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  Type = "income"
	Expense Type = "expense"
)

// AllAccounts is the sentinel selection value meaning "no account filter".
const AllAccounts = "__all__"

type (
	Type string

	// When is a transaction timestamp with optional time-of-day. Date-only
	// values sort as midnight and render without a clock component.
	When struct {
		time.Time
		HasClock bool
	}

	// Transaction is a single ledger entry. Balance is derived by Recompute
	// over one specific filtered view; it is never read from storage.
	Transaction struct {
		ID      int64  `json:"id"`
		Account string `json:"account"`
		Date    When   `json:"date"`
		Item    string `json:"item"`
		Type    Type   `json:"type"`
		Amount  int64  `json:"amount"`
		Balance int64  `json:"balance"`
	}
)

var (
	ErrEmptyAccount  = errors.New("empty account")
	ErrEmptyItem     = errors.New("empty item")
	ErrInvalidType   = errors.New("invalid transaction type")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrZeroDate      = errors.New("date cannot be zero")
)

const (
	dateFormat       = "2006-01-02"
	dateTimeFormat   = "2006-01-02 15:04:05"
	dateMinuteFormat = "2006-01-02 15:04"
)

// ParseWhen parses "YYYY-MM-DD", "YYYY-MM-DD HH:MM" or "YYYY-MM-DD HH:MM:SS".
func ParseWhen(s string) (When, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(dateFormat, s, time.UTC); err == nil {
		return When{Time: t}, nil
	}
	if t, err := time.ParseInLocation(dateMinuteFormat, s, time.UTC); err == nil {
		return When{Time: t, HasClock: true}, nil
	}
	if t, err := time.ParseInLocation(dateTimeFormat, s, time.UTC); err == nil {
		return When{Time: t, HasClock: true}, nil
	}
	return When{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD with optional HH:MM[:SS]", s)
}

// NewWhen builds a clock-carrying When when any of hour/min/sec is set by the
// caller; use NewDate for date-only values.
func NewWhen(year int, month time.Month, day, hour, min, sec int) When {
	return When{
		Time:     time.Date(year, month, day, hour, min, sec, 0, time.UTC),
		HasClock: true,
	}
}

func NewDate(year int, month time.Month, day int) When {
	return When{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// String renders the timestamp at the granularity it was parsed with.
func (w When) String() string {
	if w.HasClock {
		return w.Time.Format(dateTimeFormat)
	}
	return w.Time.Format(dateFormat)
}

// DateOnly returns the calendar-date part regardless of clock presence.
func (w When) DateOnly() string { return w.Time.Format(dateFormat) }

func (w When) Validate() error {
	if w.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func (w When) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.String())
}

func (w *When) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseWhen(s)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

var _ json.Marshaler = (*When)(nil)
var _ json.Unmarshaler = (*When)(nil)

func (t Type) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidType
	}
}

// Signed returns amount with the sign carried by the type.
func (t Type) Signed(amount int64) int64 {
	if t == Expense {
		return -amount
	}
	return amount
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Account) == "" {
		return ErrEmptyAccount
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Item) == "" {
		return ErrEmptyItem
	}
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
