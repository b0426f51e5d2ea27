// Package flatfile keeps the ledger, goals and presets as CSV files in one
// data directory. Each file has its own lock; every store and the gateway
// built by Open share those locks.
package flatfile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"allowance/internal/codec"
	"allowance/internal/core"
	applog "allowance/internal/log"
)

// Default file names inside the data directory.
const (
	DefaultLedgerFile  = "allowance.csv"
	DefaultGoalsFile   = "goals.csv"
	DefaultPresetsFile = "presets.csv"
)

// Options tune how a Store reads and writes its files.
type Options struct {
	Mode       codec.Mode
	ImportMode ImportMode
	// UniqueKeys makes goal/preset Add replace rows with the same key.
	UniqueKeys bool

	LedgerFile  string
	GoalsFile   string
	PresetsFile string

	Now    func() time.Time
	Logger *slog.Logger
}

func (o *Options) setDefaults() {
	if o.Mode == "" {
		o.Mode = codec.Tolerant
	}
	if o.ImportMode == "" {
		o.ImportMode = ImportPassthrough
	}
	if o.LedgerFile == "" {
		o.LedgerFile = DefaultLedgerFile
	}
	if o.GoalsFile == "" {
		o.GoalsFile = DefaultGoalsFile
	}
	if o.PresetsFile == "" {
		o.PresetsFile = DefaultPresetsFile
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Store groups the three tables of one data directory.
type Store struct {
	dir    string
	tables map[core.Table]*table
	logger *slog.Logger

	Ledger  *LedgerStore
	Goals   *GoalStore
	Presets *PresetStore
	Gateway *Gateway
}

// Open prepares a store rooted at dir, creating the directory if needed.
// Files are created lazily; call EnsureTables to create them up front.
func Open(dir string, opts Options) (*Store, error) {
	opts.setDefaults()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", &core.StorageError{Op: "mkdir", Path: dir, Err: err})
	}

	logger := applog.WithComponent(opts.Logger, applog.ComponentStorage)
	tables := map[core.Table]*table{
		core.TableLedger:  newTable(core.TableLedger, filepath.Join(dir, opts.LedgerFile)),
		core.TableGoals:   newTable(core.TableGoals, filepath.Join(dir, opts.GoalsFile)),
		core.TablePresets: newTable(core.TablePresets, filepath.Join(dir, opts.PresetsFile)),
	}

	s := &Store{dir: dir, tables: tables, logger: logger}
	s.Ledger = &LedgerStore{t: tables[core.TableLedger], mode: opts.Mode, now: opts.Now, logger: logger}
	s.Goals = &GoalStore{ref: newRefStore(tables[core.TableGoals], "goal", opts, logger)}
	s.Presets = &PresetStore{ref: newRefStore(tables[core.TablePresets], "label", opts, logger)}
	s.Gateway = &Gateway{tables: tables, mode: opts.ImportMode, logger: logger}
	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the file backing a table.
func (s *Store) Path(t core.Table) string {
	if tbl, ok := s.tables[t]; ok {
		return tbl.path
	}
	return ""
}

// EnsureTables creates every missing table with its header and reports
// which ones it created.
func (s *Store) EnsureTables(ctx context.Context) ([]core.Table, error) {
	var created []core.Table
	for _, kind := range core.Tables() {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		tbl := s.tables[kind]
		ok, err := ensureLocked(tbl)
		if err != nil {
			return created, fmt.Errorf("ensure %s: %w", kind, err)
		}
		if ok {
			s.logger.Info("Created table", applog.FieldTable, kind.String(), applog.FieldFile, tbl.path)
			created = append(created, kind)
		}
	}
	return created, nil
}

func ensureLocked(tbl *table) (bool, error) {
	unlock, err := tbl.lock()
	if err != nil {
		return false, err
	}
	defer unlock()
	return tbl.ensure()
}

// Ready reports whether every table file can be read.
func (s *Store) Ready(ctx context.Context) error {
	for _, kind := range core.Tables() {
		if err := ctx.Err(); err != nil {
			return err
		}
		tbl := s.tables[kind]
		unlock, err := tbl.rlock()
		if err == nil {
			_, err = tbl.readBytes()
			unlock()
		}
		if err != nil {
			return fmt.Errorf("table %s: %w", kind, err)
		}
	}
	return nil
}
