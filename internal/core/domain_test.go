package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2025-09-01", true},
		{"2024-02-29", true},
		{"2025-13-01", false},
		{"2025-02-30", false},
		{"2025/09/01", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := ParseDate(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("%q expected ok, got %v", tc.in, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
			if !errors.Is(err, ErrInvalidDate) || !IsValidation(err) {
				t.Fatalf("%q expected invalid date validation error, got %v", tc.in, err)
			}
		}
	}
}

func TestValidateMonth(t *testing.T) {
	if err := ValidateMonth("2025-09"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	for _, bad := range []string{"2025-00", "2025-13", "202509", "2025-9-1"} {
		if err := ValidateMonth(bad); !errors.Is(err, ErrInvalidMonth) {
			t.Fatalf("%q expected ErrInvalidMonth, got %v", bad, err)
		}
	}
}

func TestValidateItem(t *testing.T) {
	got, err := ValidateItem("  snack ")
	if err != nil || got != "snack" {
		t.Fatalf("unexpected: %q %v", got, err)
	}
	if _, err := ValidateItem("   "); !errors.Is(err, ErrEmptyItem) {
		t.Fatalf("expected ErrEmptyItem, got %v", err)
	}
	if _, err := ValidateLabel("goal", ""); !errors.Is(err, ErrEmptyLabel) {
		t.Fatalf("expected ErrEmptyLabel, got %v", err)
	}
}

func TestParseTable(t *testing.T) {
	cases := map[string]Table{
		"allowance": TableLedger,
		"ledger":    TableLedger,
		"Goals":     TableGoals,
		" presets ": TablePresets,
	}
	for in, want := range cases {
		got, err := ParseTable(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %q, %v", in, got, err)
		}
	}
	if _, err := ParseTable("secrets"); !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("expected ErrUnknownTable, got %v", err)
	}
}

func TestTodayTruncates(t *testing.T) {
	now := time.Date(2025, 9, 13, 23, 59, 0, 0, time.Local)
	got := Today(now)
	if FormatDate(got) != "2025-09-13" || got.Hour() != 0 {
		t.Fatalf("unexpected today: %v", got)
	}
}

func TestErrorKinds(t *testing.T) {
	se := &StorageError{Op: "open", Path: "x.csv", Err: errors.New("boom")}
	if !IsStorage(se) || IsValidation(se) {
		t.Fatalf("storage error misclassified")
	}
	ve := &ValidationError{Field: "amount", Err: ErrAmountNotInteger}
	if !IsValidation(ve) || IsStorage(ve) {
		t.Fatalf("validation error misclassified")
	}
	if ve.Error() != "amount: amount must be int" {
		t.Fatalf("unexpected message %q", ve.Error())
	}
}
