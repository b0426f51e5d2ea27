package flatfile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"allowance/internal/codec"
	"allowance/internal/core"
	applog "allowance/internal/log"
)

// LedgerStore is the append-only ledger with its running balance.
type LedgerStore struct {
	t      *table
	mode   codec.Mode
	now    func() time.Time
	logger *slog.Logger
}

// Append stores a new entry whose balance is the current balance plus
// amount. An empty date means today. The balance read and the write
// happen under the same exclusive lock.
func (s *LedgerStore) Append(ctx context.Context, item string, amount int64, date string) (core.Entry, error) {
	item, err := core.ValidateItem(item)
	if err != nil {
		return core.Entry{}, err
	}
	if date == "" {
		date = core.FormatDate(core.Today(s.now()))
	} else if _, err := core.ParseDate(date); err != nil {
		return core.Entry{}, err
	}
	if err := ctx.Err(); err != nil {
		return core.Entry{}, err
	}

	unlock, err := s.t.lock()
	if err != nil {
		return core.Entry{}, fmt.Errorf("lock ledger: %w", err)
	}
	defer unlock()

	rows, err := s.t.readRows(s.mode)
	if err != nil {
		return core.Entry{}, fmt.Errorf("read balance: %w", err)
	}
	balance, err := core.AddToBalance(lastBalance(rows), amount)
	if err != nil {
		return core.Entry{}, err
	}
	e := core.Entry{Date: date, Item: item, Amount: amount, Balance: balance}
	if err := s.t.appendRecord(codec.EntryRecord(e)); err != nil {
		return core.Entry{}, fmt.Errorf("append entry: %w", err)
	}

	applog.NewStructuredLogger(s.logger).LogEntryAppended(ctx, e.Date, e.Item, e.Amount, e.Balance)
	return e, nil
}

// CurrentBalance returns the balance field of the last data row, or 0
// when there is none or it does not parse.
func (s *LedgerStore) CurrentBalance(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	unlock, err := s.t.rlock()
	if err != nil {
		return 0, fmt.Errorf("lock ledger: %w", err)
	}
	defer unlock()

	rows, err := s.t.readRows(s.mode)
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return lastBalance(rows), nil
}

// ListAll returns every valid entry, most recent first.
func (s *LedgerStore) ListAll(ctx context.Context) ([]core.Entry, error) {
	entries, err := s.entries(ctx)
	if err != nil {
		return nil, err
	}
	return core.NewestFirst(entries), nil
}

// LastNDays returns entries dated on or after today-(n-1), most recent
// first.
func (s *LedgerStore) LastNDays(ctx context.Context, n int) ([]core.Entry, error) {
	entries, err := s.entries(ctx)
	if err != nil {
		return nil, err
	}
	return core.NewestFirst(core.RecentSince(entries, s.now(), n)), nil
}

// Snapshot returns every valid entry in file order together with the
// current balance, read under one shared lock.
func (s *LedgerStore) Snapshot(ctx context.Context) ([]core.Entry, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	unlock, err := s.t.rlock()
	if err != nil {
		return nil, 0, fmt.Errorf("lock ledger: %w", err)
	}
	defer unlock()

	rows, err := s.t.readRows(s.mode)
	if err != nil {
		return nil, 0, fmt.Errorf("read ledger: %w", err)
	}
	entries, err := codec.DecodeEntries(rows, s.mode)
	if err != nil {
		return nil, 0, fmt.Errorf("decode ledger: %w", &core.StorageError{Op: "decode", Path: s.t.path, Err: err})
	}
	return entries, lastBalance(rows), nil
}

// Stamp changes whenever the ledger file is written, by this process or
// another one sharing the directory.
func (s *LedgerStore) Stamp(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.t.stamp()
}

func (s *LedgerStore) entries(ctx context.Context) ([]core.Entry, error) {
	entries, _, err := s.Snapshot(ctx)
	return entries, err
}

func lastBalance(rows codec.Rows) int64 {
	data := rows.Data()
	if len(data) == 0 {
		return 0
	}
	last := data[len(data)-1]
	if len(last) < 4 {
		return 0
	}
	v, err := core.ParseAmount(last[3])
	if err != nil {
		return 0
	}
	return v
}
