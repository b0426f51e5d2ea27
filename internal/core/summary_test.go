package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func seedEntries() []Entry {
	return []Entry{
		{Date: "2025-08-31", Item: "init", Amount: 200, Balance: 200},
		{Date: "2025-09-10", Item: "a", Amount: 1000, Balance: 1200},
		{Date: "2025-09-11", Item: "b", Amount: -300, Balance: 900},
	}
}

func TestSummarizeMonth(t *testing.T) {
	cases := []struct {
		month string
		want  MonthSummary
	}{
		{"2025-09", MonthSummary{Income: 1000, Expense: 300, Net: 700}},
		{"2025-08", MonthSummary{Income: 200, Expense: 0, Net: 200}},
		{"2025-07", MonthSummary{}},
	}
	for _, tc := range cases {
		if got := SummarizeMonth(seedEntries(), tc.month); got != tc.want {
			t.Fatalf("%s: got %+v want %+v", tc.month, got, tc.want)
		}
	}
}

func TestSummarizeMonthSaturates(t *testing.T) {
	cases := []struct {
		name    string
		amounts []int64
		want    MonthSummary
	}{
		{"min amount", []int64{math.MinInt64}, MonthSummary{Expense: math.MaxInt64, Net: -math.MaxInt64}},
		{"expenses pile up", []int64{-math.MaxInt64, -5}, MonthSummary{Expense: math.MaxInt64, Net: -math.MaxInt64}},
		{"income piles up", []int64{math.MaxInt64, 1, -1}, MonthSummary{Income: math.MaxInt64, Expense: 1, Net: math.MaxInt64 - 1}},
	}
	for _, tc := range cases {
		var entries []Entry
		for _, a := range tc.amounts {
			entries = append(entries, Entry{Date: "2025-09-01", Amount: a})
		}
		if got := SummarizeMonth(entries, "2025-09"); got != tc.want {
			t.Fatalf("%s: got %+v want %+v", tc.name, got, tc.want)
		}
	}
}

func TestRebalanceOverflow(t *testing.T) {
	_, err := Rebalance([]Entry{{Amount: math.MaxInt64}, {Amount: 1}})
	if !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("got %v", err)
	}
}

func TestSummarizeMonthIsTextualPrefix(t *testing.T) {
	entries := []Entry{{Date: "2025-09-oops", Amount: 40}}
	if got := SummarizeMonth(entries, "2025-09"); got.Income != 40 {
		t.Fatalf("prefix match should count unparsed day, got %+v", got)
	}
}

func TestSummarizeMonthZeroIsIncome(t *testing.T) {
	entries := []Entry{{Date: "2025-09-01", Amount: 0}}
	if got := SummarizeMonth(entries, "2025-09"); got != (MonthSummary{}) {
		t.Fatalf("unexpected %+v", got)
	}
}

func TestGoalProgressNeverNegative(t *testing.T) {
	goals := []Goal{{Goal: "Switch", Amount: 25000}, {Goal: "Book", Amount: 500}, {Goal: "Debt", Amount: -10}}
	for _, bal := range []int64{-1000, 0, 900, 25000, 1 << 40} {
		for _, st := range GoalProgress(goals, bal) {
			if st.Remaining < 0 {
				t.Fatalf("balance %d goal %s: negative remaining %d", bal, st.Goal, st.Remaining)
			}
			want := st.Amount - bal
			if want < 0 {
				want = 0
			}
			if st.Remaining != want {
				t.Fatalf("balance %d goal %s: remaining %d want %d", bal, st.Goal, st.Remaining, want)
			}
		}
	}
}

func TestRecentSince(t *testing.T) {
	today := time.Date(2025, 9, 13, 15, 0, 0, 0, time.Local)
	entries := []Entry{
		{Date: "2025-09-06", Item: "old"},
		{Date: "2025-09-07", Item: "edge"},
		{Date: "not-a-date", Item: "bad"},
		{Date: "2025-09-13", Item: "today"},
	}
	got := RecentSince(entries, today, 7)
	if len(got) != 2 || got[0].Item != "edge" || got[1].Item != "today" {
		t.Fatalf("unexpected recent entries: %+v", got)
	}
}

func TestNewestFirstAndRebalance(t *testing.T) {
	rev := NewestFirst(seedEntries())
	if rev[0].Date != "2025-09-11" || rev[2].Date != "2025-08-31" {
		t.Fatalf("unexpected order: %+v", rev)
	}
	broken := []Entry{{Amount: 10, Balance: 999}, {Amount: -4, Balance: 0}, {Amount: 7}}
	fixed, err := Rebalance(broken)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{10, 6, 13}
	for i, e := range fixed {
		if e.Balance != want[i] {
			t.Fatalf("entry %d balance %d want %d", i, e.Balance, want[i])
		}
	}
	if broken[0].Balance != 999 {
		t.Fatalf("Rebalance must not modify its input")
	}
}
