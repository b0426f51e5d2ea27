// Package services sits between the handlers and the flat-file stores:
// it validates inputs, caches month summaries and publishes change events.
package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"allowance/internal/cache"
	"allowance/internal/core"
	applog "allowance/internal/log"
	"allowance/internal/sheets"
)

// Ledger is the ledger store as the service needs it.
type Ledger interface {
	sheets.LedgerWriter
	sheets.LedgerReader
	Snapshot(ctx context.Context) ([]core.Entry, int64, error)
}

// stamper is implemented by ledgers that can tell when their backing file
// changed, including through another process.
type stamper interface {
	Stamp(ctx context.Context) (string, error)
}

// Publisher announces ledger changes. The AMQP client implements it.
type Publisher interface {
	PublishEntryAppended(ctx context.Context, e core.Entry) error
	PublishTableReplaced(ctx context.Context, t core.Table) error
}

// NopPublisher drops every event. Used when AMQP_URL is unset.
type NopPublisher struct{}

func (NopPublisher) PublishEntryAppended(context.Context, core.Entry) error { return nil }
func (NopPublisher) PublishTableReplaced(context.Context, core.Table) error { return nil }

// Config tunes the service.
type Config struct {
	RecentDays      int
	SummaryCacheTTL time.Duration
	Now             func() time.Time
}

// Records is the ledger listing with its current balance.
type Records struct {
	Records []core.Entry `json:"records"`
	Balance int64        `json:"balance"`
}

// Home is the landing-page aggregate.
type Home struct {
	Balance int64             `json:"balance"`
	Last7   []core.Entry      `json:"last7"`
	Goals   []core.GoalStatus `json:"goals"`
	Presets []core.Preset     `json:"presets"`
}

// LedgerService orchestrates the stores and the event publisher.
type LedgerService struct {
	ledger    Ledger
	goals     sheets.GoalStore
	presets   sheets.PresetStore
	tables    sheets.TableGateway
	publisher Publisher
	cfg       Config
	logger    *slog.Logger

	// gen counts ledger writes made through this service. A summary is
	// cached only if no write happened while it was computed.
	mu        sync.Mutex
	gen       uint64
	summaries *cache.LRUCache[summaryEntry]
}

// summaryEntry is a cached summary with the ledger stamp read before it
// was computed.
type summaryEntry struct {
	stamp string
	sum   core.MonthSummary
}

func NewLedgerService(ledger Ledger, goals sheets.GoalStore, presets sheets.PresetStore, tables sheets.TableGateway, publisher Publisher, cfg Config, logger *slog.Logger) *LedgerService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if cfg.RecentDays <= 0 {
		cfg.RecentDays = 7
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &LedgerService{
		ledger:    ledger,
		goals:     goals,
		presets:   presets,
		tables:    tables,
		publisher: publisher,
		cfg:       cfg,
		logger:    applog.WithComponent(logger, applog.ComponentLedger),
	}
	if cfg.SummaryCacheTTL > 0 {
		s.summaries = cache.NewLRUCache[summaryEntry](64, cfg.SummaryCacheTTL)
	}
	return s
}

// SummaryCache exposes the month-summary cache for periodic cleanup; nil
// when caching is off.
func (s *LedgerService) SummaryCache() *cache.LRUCache[summaryEntry] {
	return s.summaries
}

// AddEntry appends to the ledger and publishes the stored entry.
func (s *LedgerService) AddEntry(ctx context.Context, item string, amount int64, date string) (core.Entry, error) {
	e, err := s.ledger.Append(ctx, item, amount, date)
	if err != nil {
		return core.Entry{}, fmt.Errorf("append entry: %w", err)
	}
	s.invalidate()

	if err := s.publisher.PublishEntryAppended(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish entry event",
			applog.FieldError, err,
			applog.FieldItem, e.Item,
			applog.FieldBalance, e.Balance)
	}
	return e, nil
}

// Records lists the ledger newest first with the balance of the same read.
func (s *LedgerService) Records(ctx context.Context) (Records, error) {
	entries, balance, err := s.ledger.Snapshot(ctx)
	if err != nil {
		return Records{}, fmt.Errorf("list records: %w", err)
	}
	return Records{Records: core.NewestFirst(entries), Balance: balance}, nil
}

// Balance returns the current balance.
func (s *LedgerService) Balance(ctx context.Context) (int64, error) {
	return s.ledger.CurrentBalance(ctx)
}

// CurrentMonth is the YYYY-MM of the service clock.
func (s *LedgerService) CurrentMonth() string {
	return s.cfg.Now().Format(core.MonthLayout)
}

// Summary returns the income/expense split of month; empty means the
// current month. The resolved month is returned alongside.
func (s *LedgerService) Summary(ctx context.Context, month string) (core.MonthSummary, string, error) {
	if month == "" {
		month = s.CurrentMonth()
	} else if err := core.ValidateMonth(month); err != nil {
		return core.MonthSummary{}, "", err
	}

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	stamp, cacheable := s.ledgerStamp(ctx)

	if cacheable {
		if c, ok := s.summaries.Get(month); ok && c.stamp == stamp {
			return c.sum, month, nil
		}
	}

	entries, _, err := s.ledger.Snapshot(ctx)
	if err != nil {
		return core.MonthSummary{}, "", fmt.Errorf("summarize %s: %w", month, err)
	}
	sum := core.SummarizeMonth(entries, month)
	if cacheable {
		s.mu.Lock()
		if s.gen == gen {
			s.summaries.Set(month, summaryEntry{stamp: stamp, sum: sum})
		}
		s.mu.Unlock()
	}
	return sum, month, nil
}

// ledgerStamp reports the ledger stamp and whether summaries may be cached
// under it. Ledgers without stamps cache under the empty stamp.
func (s *LedgerService) ledgerStamp(ctx context.Context) (string, bool) {
	if s.summaries == nil {
		return "", false
	}
	st, ok := s.ledger.(stamper)
	if !ok {
		return "", true
	}
	stamp, err := st.Stamp(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Ledger stamp unavailable, summary not cached", applog.FieldError, err)
		return "", false
	}
	return stamp, true
}

// Home gathers balance, recent entries, goal progress and presets. The
// three tables are read concurrently.
func (s *LedgerService) Home(ctx context.Context) (Home, error) {
	var (
		entries []core.Entry
		balance int64
		goals   []core.Goal
		presets []core.Preset
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, balance, err = s.ledger.Snapshot(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		goals, err = s.goals.ListGoals(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		presets, err = s.presets.ListPresets(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Home{}, fmt.Errorf("load home: %w", err)
	}

	recent := core.NewestFirst(core.RecentSince(entries, s.cfg.Now(), s.cfg.RecentDays))
	if recent == nil {
		recent = []core.Entry{}
	}
	if presets == nil {
		presets = []core.Preset{}
	}
	return Home{
		Balance: balance,
		Last7:   recent,
		Goals:   core.GoalProgress(goals, balance),
		Presets: presets,
	}, nil
}

func (s *LedgerService) Goals(ctx context.Context) ([]core.Goal, error) {
	return s.goals.ListGoals(ctx)
}

func (s *LedgerService) AddGoal(ctx context.Context, g core.Goal) error {
	return s.goals.AddGoal(ctx, g)
}

func (s *LedgerService) RemoveGoal(ctx context.Context, goal string) error {
	return s.goals.RemoveGoal(ctx, goal)
}

func (s *LedgerService) Presets(ctx context.Context) ([]core.Preset, error) {
	return s.presets.ListPresets(ctx)
}

func (s *LedgerService) AddPreset(ctx context.Context, p core.Preset) error {
	return s.presets.AddPreset(ctx, p)
}

func (s *LedgerService) RemovePreset(ctx context.Context, label string) error {
	return s.presets.RemovePreset(ctx, label)
}

// Export returns a table's raw bytes.
func (s *LedgerService) Export(ctx context.Context, t core.Table) ([]byte, error) {
	return s.tables.Export(ctx, t)
}

// Import replaces a table and publishes the replacement.
func (s *LedgerService) Import(ctx context.Context, t core.Table, r io.Reader) error {
	if err := s.tables.Import(ctx, t, r); err != nil {
		return err
	}
	if t == core.TableLedger {
		s.invalidate()
	}
	if err := s.publisher.PublishTableReplaced(ctx, t); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish import event",
			applog.FieldError, err,
			applog.FieldTable, t.String())
	}
	return nil
}

func (s *LedgerService) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.summaries != nil {
		s.summaries.Purge()
	}
}
