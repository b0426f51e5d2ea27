// Package worker applies ledger events to the outbound mirror.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"allowance/internal/amqp"
	"allowance/internal/cache"
	"allowance/internal/core"
	applog "allowance/internal/log"
	"allowance/internal/sheets"
)

// LedgerSnapshot reads the whole ledger in file order.
type LedgerSnapshot interface {
	Snapshot(ctx context.Context) ([]core.Entry, int64, error)
}

// MirrorWorker keeps a LedgerMirror in step with the ledger file.
//
// The worker tracks how many ledger entries the mirror holds. An appended
// event mirrors the entries past that count, read from the file, rather
// than the entry it carries, so an event whose entry was already uploaded
// by a resync adds nothing.
type MirrorWorker struct {
	ledger LedgerSnapshot
	mirror sheets.LedgerMirror
	seen   *cache.LRUCache[struct{}]
	logger *slog.Logger

	mu     sync.Mutex
	synced int // entries in the mirror; -1 until the first resync
	tail   core.Entry
}

func NewMirrorWorker(ledger LedgerSnapshot, mirror sheets.LedgerMirror, logger *slog.Logger) *MirrorWorker {
	return &MirrorWorker{
		ledger: ledger,
		mirror: mirror,
		seen:   cache.NewLRUCache[struct{}](1024, time.Hour),
		logger: applog.WithComponent(logger, applog.ComponentWorker),
		synced: -1,
	}
}

// HandleEvent applies one event. A message ID already handled is skipped,
// so a redelivery after a lost ack does not duplicate a mirrored row.
func (w *MirrorWorker) HandleEvent(ctx context.Context, msg *amqp.EventMessage) error {
	if _, dup := w.seen.Get(msg.ID); dup {
		w.logger.InfoContext(ctx, "Skipping duplicate event", applog.FieldMessageID, msg.ID)
		return nil
	}

	var err error
	switch msg.Type {
	case amqp.EventEntryAppended:
		err = w.appendEntry(ctx, msg)
	case amqp.EventTableReplaced:
		err = w.tableReplaced(ctx, msg)
	default:
		err = fmt.Errorf("unsupported event type %q", msg.Type)
	}
	if err != nil {
		return err
	}

	w.seen.Set(msg.ID, struct{}{})
	return nil
}

func (w *MirrorWorker) appendEntry(ctx context.Context, msg *amqp.EventMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries, _, err := w.ledger.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	if !w.inStep(entries) {
		return w.replace(ctx, entries)
	}

	pending := entries[w.synced:]
	if len(pending) == 0 {
		w.logger.InfoContext(ctx, "Entry already mirrored",
			applog.FieldMessageID, msg.ID,
			applog.FieldRows, w.synced)
		return nil
	}
	for _, e := range pending {
		ref, err := w.mirror.AppendEntry(ctx, e)
		if err != nil {
			return fmt.Errorf("mirror entry: %w", err)
		}
		w.synced++
		w.tail = e
		w.logger.InfoContext(ctx, "Entry mirrored",
			applog.FieldMessageID, msg.ID,
			applog.FieldMirrorRef, ref,
			applog.FieldItem, e.Item,
			applog.FieldBalance, e.Balance)
	}
	return nil
}

// inStep reports whether the mirror holds a prefix of entries. A ledger
// that shrank or whose last mirrored entry changed was rewritten.
func (w *MirrorWorker) inStep(entries []core.Entry) bool {
	switch {
	case w.synced < 0 || w.synced > len(entries):
		return false
	case w.synced == 0:
		return true
	default:
		return entries[w.synced-1] == w.tail
	}
}

func (w *MirrorWorker) tableReplaced(ctx context.Context, msg *amqp.EventMessage) error {
	if msg.Table != core.TableLedger {
		w.logger.DebugContext(ctx, "Ignoring import of unmirrored table", applog.FieldTable, msg.Table.String())
		return nil
	}
	return w.Resync(ctx)
}

// Resync uploads the whole ledger. The worker runs it at startup and
// after every ledger import.
func (w *MirrorWorker) Resync(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries, _, err := w.ledger.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	return w.replace(ctx, entries)
}

// replace uploads entries as the whole mirror. Caller holds w.mu.
func (w *MirrorWorker) replace(ctx context.Context, entries []core.Entry) error {
	w.synced = -1
	if err := w.mirror.ReplaceEntries(ctx, entries); err != nil {
		return fmt.Errorf("mirror ledger: %w", err)
	}
	w.synced = len(entries)
	w.tail = core.Entry{}
	if len(entries) > 0 {
		w.tail = entries[len(entries)-1]
	}
	w.logger.InfoContext(ctx, "Ledger resynced", applog.FieldRows, len(entries), applog.FieldOperation, applog.OpSync)
	return nil
}
