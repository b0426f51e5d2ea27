// Package codec reads and writes the three flat tables as ordered rows of
// comma separated fields.
//
// Row 0 of every table is the header and is never decoded as data. How the
// typed decoders treat a row that does not match the schema depends on the
// Mode: Tolerant drops it, Strict reports it as a *RowError.
package codec

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"

	"allowance/internal/core"
)

// Mode selects how malformed rows are handled.
type Mode string

const (
	Tolerant Mode = "tolerant"
	Strict   Mode = "strict"
)

// ParseMode maps a configuration value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Tolerant, Strict:
		return Mode(s), nil
	case "":
		return Tolerant, nil
	}
	return "", fmt.Errorf("unknown decode mode %q", s)
}

var headers = map[core.Table][]string{
	core.TableLedger:  {"date", "item", "amount", "balance"},
	core.TableGoals:   {"goal", "amount"},
	core.TablePresets: {"label", "amount"},
}

// Header returns the canonical header row of a table.
func Header(t core.Table) []string {
	return slices.Clone(headers[t])
}

// HeaderBytes returns the encoded canonical header of a table.
func HeaderBytes(t core.Table) []byte {
	var buf bytes.Buffer
	_ = WriteRows(&buf, [][]string{Header(t)})
	return buf.Bytes()
}

// RowError locates a row that does not match the table schema.
type RowError struct {
	Line   int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Rows is a decoded table: the raw records plus the source line of each.
type Rows struct {
	Records [][]string
	Lines   []int
}

// Data returns the records after the header.
func (r Rows) Data() [][]string {
	if len(r.Records) <= 1 {
		return nil
	}
	return r.Records[1:]
}

func (r Rows) line(dataIndex int) int {
	if dataIndex+1 < len(r.Lines) {
		return r.Lines[dataIndex+1]
	}
	return 0
}

// ReadRows decodes every record of a table. Records of any width are
// accepted here; schema checks belong to the typed decoders. A record the
// csv reader cannot parse is skipped in Tolerant mode and reported in
// Strict mode.
func ReadRows(r io.Reader, mode Mode) (Rows, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = mode == Tolerant
	cr.ReuseRecord = false

	var out Rows
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				if mode == Strict {
					return Rows{}, &RowError{Line: pe.Line, Reason: pe.Err.Error()}
				}
				continue
			}
			return Rows{}, err
		}
		line, _ := cr.FieldPos(0)
		out.Records = append(out.Records, rec)
		out.Lines = append(out.Lines, line)
	}
}

// WriteRows encodes rows with a trailing newline after each record.
func WriteRows(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// CheckHeader compares the first record against the canonical header.
// Only Strict mode cares; Tolerant mode accepts any first row.
func CheckHeader(t core.Table, rows Rows, mode Mode) error {
	if mode != Strict {
		return nil
	}
	if len(rows.Records) == 0 {
		return &RowError{Line: 1, Reason: "missing header"}
	}
	if !slices.Equal(rows.Records[0], headers[t]) {
		return &RowError{Line: rows.Lines[0], Reason: fmt.Sprintf("header %v, want %v", rows.Records[0], headers[t])}
	}
	return nil
}
