package core

import (
	"strings"
	"time"
)

// DateLayout is the only date representation stored in the ledger.
const DateLayout = "2006-01-02"

// MonthLayout is the textual month used by summaries (a prefix of DateLayout).
const MonthLayout = "2006-01"

type (
	// Entry is one ledger row. Balance is the running total through this
	// entry, inclusive.
	Entry struct {
		Date    string `json:"date"`
		Item    string `json:"item"`
		Amount  int64  `json:"amount"`
		Balance int64  `json:"balance"`
	}

	// Goal is a savings target keyed by its label.
	Goal struct {
		Goal   string `json:"goal" yaml:"goal"`
		Amount int64  `json:"amount" yaml:"amount"`
	}

	// Preset is a quick-entry default keyed by its label.
	Preset struct {
		Label  string `json:"label" yaml:"label"`
		Amount int64  `json:"amount" yaml:"amount"`
	}

	// Table identifies one of the three persisted collections.
	Table string
)

const (
	TableLedger  Table = "allowance"
	TableGoals   Table = "goals"
	TablePresets Table = "presets"
)

// Tables lists every table in a stable order.
func Tables() []Table {
	return []Table{TableLedger, TableGoals, TablePresets}
}

// ParseTable maps a user supplied table name to a Table. "ledger" is
// accepted as an alias of the allowance table.
func ParseTable(name string) (Table, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "allowance", "ledger":
		return TableLedger, nil
	case "goals":
		return TableGoals, nil
	case "presets":
		return TablePresets, nil
	}
	return "", &ValidationError{Field: "file", Err: ErrUnknownTable}
}

func (t Table) String() string { return string(t) }

// ValidateItem trims the label and rejects it when empty.
func ValidateItem(item string) (string, error) {
	item = strings.TrimSpace(item)
	if item == "" {
		return "", &ValidationError{Field: "item", Err: ErrEmptyItem}
	}
	return item, nil
}

// ValidateLabel is ValidateItem for goal and preset keys.
func ValidateLabel(field, label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", &ValidationError{Field: field, Err: ErrEmptyLabel}
	}
	return label, nil
}

// ParseDate parses a calendar date in YYYY-MM-DD form.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Err: ErrInvalidDate}
	}
	return t, nil
}

// ValidateMonth checks a YYYY-MM month string.
func ValidateMonth(s string) error {
	if _, err := time.Parse(MonthLayout, s); err != nil {
		return &ValidationError{Field: "month", Err: ErrInvalidMonth}
	}
	return nil
}

// Today returns the local calendar date of now, truncated to midnight.
func Today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders t with DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
