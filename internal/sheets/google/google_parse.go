package google

import (
	"fmt"
	"strings"

	"allowance/internal/core"
)

func headerValues() []any {
	return []any{"date", "item", "amount", "balance"}
}

func entryValues(e core.Entry) []any {
	return []any{e.Date, e.Item, e.Amount, e.Balance}
}

// tableValues is the header followed by one row per entry.
func tableValues(entries []core.Entry) [][]any {
	out := make([][]any, 0, len(entries)+1)
	out = append(out, headerValues())
	for _, e := range entries {
		out = append(out, entryValues(e))
	}
	return out
}

// nextRow returns the 1-based row after the last non-blank cell of a
// single-column read. The API trims trailing empty rows but keeps inner
// ones, so only the tail is inspected.
func nextRow(values [][]any) int {
	n := len(values)
	for n > 0 {
		row := values[n-1]
		if len(row) > 0 && strings.TrimSpace(fmt.Sprint(row[0])) != "" {
			break
		}
		n--
	}
	return n + 1
}

func rowRef(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:D%d", sheet, row, row)
}
