// Package memory is an in-process LedgerMirror. The worker falls back to
// it when no spreadsheet is configured, which keeps the event path
// exercised end to end without Google credentials.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"allowance/internal/core"
	ports "allowance/internal/sheets"
)

var _ ports.LedgerMirror = (*Mirror)(nil)

type Mirror struct {
	mu      sync.Mutex
	entries []core.Entry
}

func New() *Mirror {
	return &Mirror{}
}

// AppendEntry stores the entry and returns a synthetic row reference.
func (m *Mirror) AppendEntry(_ context.Context, e core.Entry) (string, error) {
	if _, err := core.ValidateItem(e.Item); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return fmt.Sprintf("mem:%d", len(m.entries)), nil
}

// ReplaceEntries swaps the mirrored ledger for a copy of entries.
func (m *Mirror) ReplaceEntries(_ context.Context, entries []core.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = slices.Clone(entries)
	return nil
}

// Entries returns a copy of what has been mirrored, oldest first.
func (m *Mirror) Entries() []core.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries)
}
