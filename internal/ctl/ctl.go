// Package ctl implements the allowancectl subcommands. They work on the
// same data directory as the server and may run while it is up. Table
// access takes the store's advisory lock files, which the server takes
// too, and the server's summary cache is keyed on the ledger file stamp,
// so it notices writes made here.
package ctl

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"allowance/internal/core"
	"allowance/internal/services"
)

// Ledger is the part of the ledger service the subcommands use.
type Ledger interface {
	AddEntry(ctx context.Context, item string, amount int64, date string) (core.Entry, error)
	Records(ctx context.Context) (services.Records, error)
	Summary(ctx context.Context, month string) (core.MonthSummary, string, error)
	Home(ctx context.Context) (services.Home, error)

	Goals(ctx context.Context) ([]core.Goal, error)
	AddGoal(ctx context.Context, g core.Goal) error
	RemoveGoal(ctx context.Context, goal string) error
	Presets(ctx context.Context) ([]core.Preset, error)
	AddPreset(ctx context.Context, p core.Preset) error
	RemovePreset(ctx context.Context, label string) error

	Export(ctx context.Context, t core.Table) ([]byte, error)
	Import(ctx context.Context, t core.Table, r io.Reader) error
}

// Env is shared by every subcommand. Open is called lazily so that help
// and flag errors never touch the data directory.
type Env struct {
	Open  func(ctx context.Context) (Ledger, func(), error)
	Out   io.Writer
	Plain bool
}

// Commands lists the subcommands bound to env.
func Commands(env *Env) []subcommands.Command {
	return []subcommands.Command{
		&balanceCmd{env: env},
		&addCmd{env: env},
		&listCmd{env: env},
		&summaryCmd{env: env},
		&refCmd{env: env, kind: goalsKind},
		&refCmd{env: env, kind: presetsKind},
		&exportCmd{env: env},
		&importCmd{env: env},
	}
}

// with opens the ledger, runs fn and maps its error to an exit status.
func (e *Env) with(ctx context.Context, fn func(Ledger) error) subcommands.ExitStatus {
	l, closeFn, err := e.Open(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	if closeFn != nil {
		defer closeFn()
	}
	if err := fn(l); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// printMarkdown styles md for the terminal unless plain output was asked
// for. Rendering failures fall back to the raw markdown.
func (e *Env) printMarkdown(md string) {
	if !e.Plain {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err == nil {
			if out, err := r.Render(md); err == nil {
				md = out
			}
		}
	}
	fmt.Fprint(e.Out, md)
}

func cellText(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func entriesTable(entries []core.Entry) string {
	if len(entries) == 0 {
		return "_No entries._\n"
	}
	var b strings.Builder
	b.WriteString("| Date | Item | Amount | Balance |\n|---|---|---:|---:|\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "| %s | %s | %d | %d |\n", e.Date, cellText(e.Item), e.Amount, e.Balance)
	}
	return b.String()
}

func goalStatusTable(goals []core.GoalStatus) string {
	if len(goals) == 0 {
		return "_No goals._\n"
	}
	var b strings.Builder
	b.WriteString("| Goal | Amount | Remaining |\n|---|---:|---:|\n")
	for _, g := range goals {
		fmt.Fprintf(&b, "| %s | %d | %d |\n", cellText(g.Goal), g.Amount, g.Remaining)
	}
	return b.String()
}

func labelAmountTable(header string, rows [][2]string) string {
	if len(rows) == 0 {
		return "_None._\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "| %s | Amount |\n|---|---:|\n", header)
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %s |\n", cellText(r[0]), r[1])
	}
	return b.String()
}
