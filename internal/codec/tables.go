package codec

import (
	"fmt"
	"io"
	"strings"

	"allowance/internal/core"
)

// DecodeEntries turns ledger rows into entries, oldest first.
func DecodeEntries(rows Rows, mode Mode) ([]core.Entry, error) {
	if err := CheckHeader(core.TableLedger, rows, mode); err != nil {
		return nil, err
	}
	data := rows.Data()
	out := make([]core.Entry, 0, len(data))
	for i, rec := range data {
		e, reason := entryFromRecord(rec, mode)
		if reason != "" {
			if mode == Strict {
				return nil, &RowError{Line: rows.line(i), Reason: reason}
			}
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func entryFromRecord(rec []string, mode Mode) (core.Entry, string) {
	if len(rec) != 4 {
		return core.Entry{}, fmt.Sprintf("%d fields, want 4", len(rec))
	}
	amount, err := core.ParseAmount(rec[2])
	if err != nil {
		return core.Entry{}, fmt.Sprintf("amount %q is not an integer", rec[2])
	}
	balance, err := core.ParseAmount(rec[3])
	if err != nil {
		return core.Entry{}, fmt.Sprintf("balance %q is not an integer", rec[3])
	}
	if mode == Strict {
		if _, err := core.ParseDate(rec[0]); err != nil {
			return core.Entry{}, fmt.Sprintf("date %q is not YYYY-MM-DD", rec[0])
		}
		if strings.TrimSpace(rec[1]) == "" {
			return core.Entry{}, "empty item"
		}
	}
	return core.Entry{Date: rec[0], Item: rec[1], Amount: amount, Balance: balance}, ""
}

// DecodeGoals turns goal rows into goals in file order.
func DecodeGoals(rows Rows, mode Mode) ([]core.Goal, error) {
	pairs, err := decodePairs(core.TableGoals, rows, mode)
	if err != nil {
		return nil, err
	}
	out := make([]core.Goal, len(pairs))
	for i, p := range pairs {
		out[i] = core.Goal{Goal: p.key, Amount: p.amount}
	}
	return out, nil
}

// DecodePresets turns preset rows into presets in file order.
func DecodePresets(rows Rows, mode Mode) ([]core.Preset, error) {
	pairs, err := decodePairs(core.TablePresets, rows, mode)
	if err != nil {
		return nil, err
	}
	out := make([]core.Preset, len(pairs))
	for i, p := range pairs {
		out[i] = core.Preset{Label: p.key, Amount: p.amount}
	}
	return out, nil
}

type pair struct {
	key    string
	amount int64
}

func decodePairs(t core.Table, rows Rows, mode Mode) ([]pair, error) {
	if err := CheckHeader(t, rows, mode); err != nil {
		return nil, err
	}
	data := rows.Data()
	out := make([]pair, 0, len(data))
	for i, rec := range data {
		reason := ""
		var p pair
		switch {
		case len(rec) != 2:
			reason = fmt.Sprintf("%d fields, want 2", len(rec))
		default:
			amount, err := core.ParseAmount(rec[1])
			if err != nil {
				reason = fmt.Sprintf("amount %q is not an integer", rec[1])
				break
			}
			p = pair{key: rec[0], amount: amount}
			if mode == Strict && strings.TrimSpace(rec[0]) == "" {
				reason = "empty key"
			}
		}
		if reason != "" {
			if mode == Strict {
				return nil, &RowError{Line: rows.line(i), Reason: reason}
			}
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// EntryRecord renders an entry as a ledger record.
func EntryRecord(e core.Entry) []string {
	return []string{e.Date, e.Item, core.FormatAmount(e.Amount), core.FormatAmount(e.Balance)}
}

// PairRecord renders a goal or preset as a record.
func PairRecord(key string, amount int64) []string {
	return []string{key, core.FormatAmount(amount)}
}

// EncodeEntries writes the canonical ledger: header then one row per entry.
func EncodeEntries(w io.Writer, entries []core.Entry) error {
	rows := make([][]string, 0, len(entries)+1)
	rows = append(rows, Header(core.TableLedger))
	for _, e := range entries {
		rows = append(rows, EntryRecord(e))
	}
	return WriteRows(w, rows)
}

// EncodeGoals writes the canonical goals table.
func EncodeGoals(w io.Writer, goals []core.Goal) error {
	rows := make([][]string, 0, len(goals)+1)
	rows = append(rows, Header(core.TableGoals))
	for _, g := range goals {
		rows = append(rows, PairRecord(g.Goal, g.Amount))
	}
	return WriteRows(w, rows)
}

// EncodePresets writes the canonical presets table.
func EncodePresets(w io.Writer, presets []core.Preset) error {
	rows := make([][]string, 0, len(presets)+1)
	rows = append(rows, Header(core.TablePresets))
	for _, p := range presets {
		rows = append(rows, PairRecord(p.Label, p.Amount))
	}
	return WriteRows(w, rows)
}
