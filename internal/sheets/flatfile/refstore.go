package flatfile

import (
	"context"
	"fmt"
	"log/slog"

	"allowance/internal/codec"
	"allowance/internal/core"
	applog "allowance/internal/log"
)

// RefStore is a two-column key/amount table. Goals and presets are thin
// typed views over it.
type RefStore struct {
	t      *table
	field  string
	mode   codec.Mode
	unique bool
	logger *slog.Logger
}

func newRefStore(t *table, field string, opts Options, logger *slog.Logger) *RefStore {
	return &RefStore{t: t, field: field, mode: opts.Mode, unique: opts.UniqueKeys, logger: logger}
}

func (s *RefStore) rows(ctx context.Context) (codec.Rows, error) {
	if err := ctx.Err(); err != nil {
		return codec.Rows{}, err
	}
	unlock, err := s.t.rlock()
	if err != nil {
		return codec.Rows{}, err
	}
	defer unlock()
	return s.t.readRows(s.mode)
}

// Add appends key/amount. With unique keys on, rows sharing the key are
// replaced instead.
func (s *RefStore) Add(ctx context.Context, key string, amount int64) error {
	key, err := core.ValidateLabel(s.field, key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock, err := s.t.lock()
	if err != nil {
		return fmt.Errorf("add %s: %w", s.field, err)
	}
	defer unlock()

	rec := codec.PairRecord(key, amount)
	if s.unique {
		err = s.rewriteWithout(key, rec)
	} else {
		err = s.t.appendRecord(rec)
	}
	if err != nil {
		return fmt.Errorf("add %s: %w", s.field, err)
	}

	s.logger.InfoContext(ctx, "Reference row added",
		applog.FieldTable, s.t.kind.String(),
		applog.FieldItem, key,
		applog.FieldAmount, amount,
		applog.FieldOperation, applog.OpCreate)
	return nil
}

// Remove drops every data row whose first field equals key exactly. An
// absent key leaves the table as it was.
func (s *RefStore) Remove(ctx context.Context, key string) error {
	if key == "" {
		return &core.ValidationError{Field: s.field, Err: core.ErrEmptyLabel}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock, err := s.t.lock()
	if err != nil {
		return fmt.Errorf("remove %s: %w", s.field, err)
	}
	defer unlock()

	if err := s.rewriteWithout(key, nil); err != nil {
		return fmt.Errorf("remove %s: %w", s.field, err)
	}

	s.logger.InfoContext(ctx, "Reference row removed",
		applog.FieldTable, s.t.kind.String(),
		applog.FieldItem, key,
		applog.FieldOperation, applog.OpDelete)
	return nil
}

// rewriteWithout rewrites the table minus rows keyed by key, then adds
// extra when non-nil. Rows are read tolerantly so that malformed rows
// which are not being removed survive the rewrite.
func (s *RefStore) rewriteWithout(key string, extra []string) error {
	rows, err := s.t.readRows(codec.Tolerant)
	if err != nil {
		return err
	}

	out := make([][]string, 0, len(rows.Records)+1)
	if len(rows.Records) == 0 {
		out = append(out, codec.Header(s.t.kind))
	} else {
		out = append(out, rows.Records[0])
	}
	for _, rec := range rows.Data() {
		if len(rec) > 0 && rec[0] == key {
			continue
		}
		out = append(out, rec)
	}
	if extra != nil {
		out = append(out, extra)
	}
	return s.t.rewriteRows(out)
}

// GoalStore lists, adds and removes savings goals.
type GoalStore struct {
	ref *RefStore
}

// ListGoals returns the goals in file order, duplicates included.
func (s *GoalStore) ListGoals(ctx context.Context) ([]core.Goal, error) {
	rows, err := s.ref.rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("read goals: %w", err)
	}
	goals, err := codec.DecodeGoals(rows, s.ref.mode)
	if err != nil {
		return nil, fmt.Errorf("decode goals: %w", &core.StorageError{Op: "decode", Path: s.ref.t.path, Err: err})
	}
	return goals, nil
}

func (s *GoalStore) AddGoal(ctx context.Context, g core.Goal) error {
	return s.ref.Add(ctx, g.Goal, g.Amount)
}

func (s *GoalStore) RemoveGoal(ctx context.Context, goal string) error {
	return s.ref.Remove(ctx, goal)
}

// PresetStore lists, adds and removes quick-entry presets.
type PresetStore struct {
	ref *RefStore
}

// ListPresets returns the presets in file order, duplicates included.
func (s *PresetStore) ListPresets(ctx context.Context) ([]core.Preset, error) {
	rows, err := s.ref.rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	presets, err := codec.DecodePresets(rows, s.ref.mode)
	if err != nil {
		return nil, fmt.Errorf("decode presets: %w", &core.StorageError{Op: "decode", Path: s.ref.t.path, Err: err})
	}
	return presets, nil
}

func (s *PresetStore) AddPreset(ctx context.Context, p core.Preset) error {
	return s.ref.Add(ctx, p.Label, p.Amount)
}

func (s *PresetStore) RemovePreset(ctx context.Context, label string) error {
	return s.ref.Remove(ctx, label)
}
