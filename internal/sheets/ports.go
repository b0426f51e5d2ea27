package sheets

import (
	"context"
	"io"

	"allowance/internal/core"
)

// Ports for the tables and their outbound mirrors.
type (
	// LedgerWriter appends balance-carrying entries.
	LedgerWriter interface {
		// Append records item/amount on date (empty means today) and returns
		// the stored entry with its running balance.
		Append(ctx context.Context, item string, amount int64, date string) (core.Entry, error)
	}

	// LedgerReader answers the ledger's read queries.
	LedgerReader interface {
		CurrentBalance(ctx context.Context) (int64, error)
		// ListAll returns every valid entry, most recent first.
		ListAll(ctx context.Context) ([]core.Entry, error)
		// LastNDays returns entries dated within the last n days, most recent first.
		LastNDays(ctx context.Context, n int) ([]core.Entry, error)
	}

	// GoalStore holds savings goals.
	GoalStore interface {
		ListGoals(ctx context.Context) ([]core.Goal, error)
		AddGoal(ctx context.Context, g core.Goal) error
		RemoveGoal(ctx context.Context, goal string) error
	}

	// PresetStore holds quick-entry presets.
	PresetStore interface {
		ListPresets(ctx context.Context) ([]core.Preset, error)
		AddPreset(ctx context.Context, p core.Preset) error
		RemovePreset(ctx context.Context, label string) error
	}

	// TableGateway moves whole tables in and out.
	TableGateway interface {
		Export(ctx context.Context, t core.Table) ([]byte, error)
		Import(ctx context.Context, t core.Table, r io.Reader) error
	}

	// LedgerMirror receives a copy of the ledger somewhere outside the
	// data directory.
	LedgerMirror interface {
		AppendEntry(ctx context.Context, e core.Entry) (rowRef string, err error)
		ReplaceEntries(ctx context.Context, entries []core.Entry) error
	}
)
