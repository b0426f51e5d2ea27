package flatfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"allowance/internal/codec"
	"allowance/internal/core"
	applog "allowance/internal/log"
)

// ImportMode decides what Import does with an uploaded table.
type ImportMode string

const (
	// ImportPassthrough writes the upload verbatim.
	ImportPassthrough ImportMode = "passthrough"
	// ImportRebalance decodes the upload strictly, recomputes ledger
	// balances and writes the canonical encoding.
	ImportRebalance ImportMode = "rebalance"
)

// ParseImportMode maps a configuration value to an ImportMode.
func ParseImportMode(s string) (ImportMode, error) {
	switch ImportMode(s) {
	case ImportPassthrough, ImportRebalance:
		return ImportMode(s), nil
	case "":
		return ImportPassthrough, nil
	}
	return "", fmt.Errorf("unknown import mode %q", s)
}

// Gateway exports and replaces whole tables.
type Gateway struct {
	tables map[core.Table]*table
	mode   ImportMode
	logger *slog.Logger
}

// Mode returns the configured import mode.
func (g *Gateway) Mode() ImportMode { return g.mode }

func (g *Gateway) table(t core.Table) (*table, error) {
	tbl, ok := g.tables[t]
	if !ok {
		return nil, &core.ValidationError{Field: "file", Err: core.ErrUnknownTable}
	}
	return tbl, nil
}

// Export returns the table's bytes as stored, creating it first if it
// does not exist.
func (g *Gateway) Export(ctx context.Context, t core.Table) ([]byte, error) {
	tbl, err := g.table(t)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock, err := tbl.rlock()
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", t, err)
	}
	defer unlock()

	b, err := tbl.readBytes()
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", t, err)
	}
	return b, nil
}

// Import replaces the whole table with the content of r. The upload is
// read before the lock is taken; the swap itself is atomic.
func (g *Gateway) Import(ctx context.Context, t core.Table, r io.Reader) error {
	tbl, err := g.table(t)
	if err != nil {
		return err
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	if g.mode == ImportRebalance {
		if content, err = normalize(t, content); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock, err := tbl.lock()
	if err != nil {
		return fmt.Errorf("import %s: %w", t, err)
	}
	defer unlock()

	if err := tbl.replace(content); err != nil {
		return fmt.Errorf("import %s: %w", t, err)
	}

	g.logger.InfoContext(ctx, "Table imported",
		applog.FieldTable, t.String(),
		applog.FieldOperation, applog.OpImport,
		"bytes", len(content),
		"import_mode", string(g.mode))
	return nil
}

// normalize decodes content strictly and re-encodes it canonically. The
// ledger's balance column is recomputed from the amounts.
func normalize(t core.Table, content []byte) ([]byte, error) {
	rows, err := codec.ReadRows(bytes.NewReader(content), codec.Strict)
	if err != nil {
		return nil, importError(err)
	}

	var buf bytes.Buffer
	switch t {
	case core.TableLedger:
		entries, err := codec.DecodeEntries(rows, codec.Strict)
		if err != nil {
			return nil, importError(err)
		}
		rebalanced, err := core.Rebalance(entries)
		if err != nil {
			return nil, importError(err)
		}
		if err := codec.EncodeEntries(&buf, rebalanced); err != nil {
			return nil, err
		}
	case core.TableGoals:
		goals, err := codec.DecodeGoals(rows, codec.Strict)
		if err != nil {
			return nil, importError(err)
		}
		if err := codec.EncodeGoals(&buf, goals); err != nil {
			return nil, err
		}
	case core.TablePresets:
		presets, err := codec.DecodePresets(rows, codec.Strict)
		if err != nil {
			return nil, importError(err)
		}
		if err := codec.EncodePresets(&buf, presets); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func importError(err error) error {
	var re *codec.RowError
	if errors.As(err, &re) {
		return &core.ValidationError{Field: "csvfile", Err: fmt.Errorf("%w: %s", core.ErrInvalidImport, re.Error())}
	}
	return &core.ValidationError{Field: "csvfile", Err: fmt.Errorf("%w: %v", core.ErrInvalidImport, err)}
}
