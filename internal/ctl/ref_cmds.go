package ctl

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"allowance/internal/core"
)

type refKind string

const (
	goalsKind   refKind = "goals"
	presetsKind refKind = "presets"
)

// refCmd manages one of the keyed reference tables: goals or presets.
type refCmd struct {
	env  *Env
	kind refKind
}

func (c *refCmd) Name() string { return string(c.kind) }

func (c *refCmd) Synopsis() string {
	if c.kind == goalsKind {
		return "list, add or remove savings goals"
	}
	return "list, add or remove chore presets"
}

func (c *refCmd) Usage() string {
	return fmt.Sprintf(`allowancectl %[1]s [add <label> <amount> | rm <label>]

  Without arguments lists the %[1]s. Removing a label that does not
  exist is not an error.
`, c.kind)
}

func (*refCmd) SetFlags(*flag.FlagSet) {}

func (c *refCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	switch {
	case len(args) == 0:
		return c.env.with(ctx, c.list(ctx))
	case args[0] == "add" && len(args) == 3:
		amount, err := core.ParseAmount(args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitUsageError
		}
		return c.env.with(ctx, c.add(ctx, args[1], amount))
	case args[0] == "rm" && len(args) == 2:
		return c.env.with(ctx, c.remove(ctx, args[1]))
	}
	fmt.Fprint(os.Stderr, c.Usage())
	return subcommands.ExitUsageError
}

func (c *refCmd) list(ctx context.Context) func(Ledger) error {
	return func(l Ledger) error {
		var rows [][2]string
		header := "Goal"
		if c.kind == goalsKind {
			goals, err := l.Goals(ctx)
			if err != nil {
				return err
			}
			for _, g := range goals {
				rows = append(rows, [2]string{g.Goal, core.FormatAmount(g.Amount)})
			}
		} else {
			header = "Label"
			presets, err := l.Presets(ctx)
			if err != nil {
				return err
			}
			for _, p := range presets {
				rows = append(rows, [2]string{p.Label, core.FormatAmount(p.Amount)})
			}
		}
		c.env.printMarkdown(labelAmountTable(header, rows))
		return nil
	}
}

func (c *refCmd) add(ctx context.Context, label string, amount int64) func(Ledger) error {
	return func(l Ledger) error {
		var err error
		if c.kind == goalsKind {
			err = l.AddGoal(ctx, core.Goal{Goal: label, Amount: amount})
		} else {
			err = l.AddPreset(ctx, core.Preset{Label: label, Amount: amount})
		}
		if err != nil {
			return err
		}
		c.env.printMarkdown(fmt.Sprintf("Added **%s** (%d) to %s.\n", cellText(label), amount, c.kind))
		return nil
	}
}

func (c *refCmd) remove(ctx context.Context, label string) func(Ledger) error {
	return func(l Ledger) error {
		var err error
		if c.kind == goalsKind {
			err = l.RemoveGoal(ctx, label)
		} else {
			err = l.RemovePreset(ctx, label)
		}
		if err != nil {
			return err
		}
		c.env.printMarkdown(fmt.Sprintf("Removed **%s** from %s.\n", cellText(label), c.kind))
		return nil
	}
}
