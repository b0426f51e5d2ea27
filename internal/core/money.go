// Package core provides the ledger domain types and the pure functions
// computed over them.
//
// This file contains amount parsing. Amounts are signed whole units:
// positive is income, negative is expense, zero is allowed.
package core

import (
	"math"
	"strconv"
	"strings"
)

// ParseAmount converts a decimal integer string to an amount.
//
// Surrounding whitespace and a leading sign are accepted. Anything that is
// not a base-10 integer fitting in int64 yields ErrAmountNotInteger.
//
// Examples:
//
//	ParseAmount("120")  -> 120, nil
//	ParseAmount(" -30") -> -30, nil
//	ParseAmount("+5")   -> 5, nil
//	ParseAmount("1.5")  -> 0, ErrAmountNotInteger
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &ValidationError{Field: "amount", Err: ErrAmountNotInteger}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &ValidationError{Field: "amount", Err: ErrAmountNotInteger}
	}
	return v, nil
}

// AddToBalance returns balance+amount, or ErrBalanceOverflow when the sum
// does not fit in int64.
func AddToBalance(balance, amount int64) (int64, error) {
	if (amount > 0 && balance > math.MaxInt64-amount) || (amount < 0 && balance < math.MinInt64-amount) {
		return 0, &ValidationError{Field: "amount", Err: ErrBalanceOverflow}
	}
	return balance + amount, nil
}

// FormatAmount renders an amount the way it is stored in the tables.
func FormatAmount(v int64) string {
	return strconv.FormatInt(v, 10)
}
