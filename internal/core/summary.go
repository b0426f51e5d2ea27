package core

import (
	"math"
	"strings"
	"time"
)

// MonthSummary is the income/expense split of one textual month.
type MonthSummary struct {
	Income  int64 `json:"income"`
	Expense int64 `json:"expense"`
	Net     int64 `json:"net"`
}

// GoalStatus is a goal with the amount still missing at a given balance.
type GoalStatus struct {
	Goal      string `json:"goal"`
	Amount    int64  `json:"amount"`
	Remaining int64  `json:"remaining"`
}

// SummarizeMonth sums the entries whose stored date starts with yyyymm.
// The match is textual: it relies on dates being stored as YYYY-MM-DD.
// Non-negative amounts count as income, negative ones as expense. Totals
// saturate at math.MaxInt64 instead of wrapping.
func SummarizeMonth(entries []Entry, yyyymm string) MonthSummary {
	var s MonthSummary
	for _, e := range entries {
		if !strings.HasPrefix(e.Date, yyyymm) {
			continue
		}
		if e.Amount >= 0 {
			s.Income = saturatingAdd(s.Income, e.Amount)
		} else if e.Amount == math.MinInt64 {
			s.Expense = math.MaxInt64
		} else {
			s.Expense = saturatingAdd(s.Expense, -e.Amount)
		}
	}
	// Both totals are non-negative, so the difference cannot wrap.
	s.Net = s.Income - s.Expense
	return s
}

// saturatingAdd adds two non-negative values.
func saturatingAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// GoalProgress pairs each goal with max(0, amount-balance).
func GoalProgress(goals []Goal, balance int64) []GoalStatus {
	out := make([]GoalStatus, 0, len(goals))
	for _, g := range goals {
		remaining := g.Amount - balance
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, GoalStatus{Goal: g.Goal, Amount: g.Amount, Remaining: remaining})
	}
	return out
}

// RecentSince keeps entries dated on or after today-(n-1) days, in input
// order. Entries whose date does not parse are dropped.
func RecentSince(entries []Entry, today time.Time, n int) []Entry {
	edge := Today(today).AddDate(0, 0, -(n - 1))
	var out []Entry
	for _, e := range entries {
		d, err := time.Parse(DateLayout, e.Date)
		if err != nil {
			continue
		}
		if !d.Before(edge) {
			out = append(out, e)
		}
	}
	return out
}

// NewestFirst returns a reversed copy of entries.
func NewestFirst(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}

// Rebalance recomputes the running balance of entries from their amounts,
// starting at zero. It fails with ErrBalanceOverflow when a running
// balance does not fit in int64.
func Rebalance(entries []Entry) ([]Entry, error) {
	out := make([]Entry, len(entries))
	var bal int64
	for i, e := range entries {
		var err error
		if bal, err = AddToBalance(bal, e.Amount); err != nil {
			return nil, err
		}
		e.Balance = bal
		out[i] = e
	}
	return out, nil
}
