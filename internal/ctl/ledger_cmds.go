package ctl

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"allowance/internal/core"
)

type balanceCmd struct {
	env *Env
}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "show the balance and goal progress" }
func (*balanceCmd) Usage() string {
	return `allowancectl balance

  Prints the current balance and how much is still missing for each goal.
`
}
func (*balanceCmd) SetFlags(*flag.FlagSet) {}

func (c *balanceCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.with(ctx, func(l Ledger) error {
		home, err := l.Home(ctx)
		if err != nil {
			return err
		}
		c.env.printMarkdown(fmt.Sprintf("**Balance:** %d\n\n%s", home.Balance, goalStatusTable(home.Goals)))
		return nil
	})
}

type addCmd struct {
	env  *Env
	date string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "append an entry to the ledger" }
func (*addCmd) Usage() string {
	return `allowancectl add [-d <date>] <item> <amount>

  Appends an entry. Use a negative amount for spending. The date defaults
  to today.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "Entry date as YYYY-MM-DD. Defaults to today.")
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	item := f.Arg(0)
	amount, err := core.ParseAmount(f.Arg(1))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}
	return c.env.with(ctx, func(l Ledger) error {
		e, err := l.AddEntry(ctx, item, amount, strings.TrimSpace(c.date))
		if err != nil {
			return err
		}
		c.env.printMarkdown(fmt.Sprintf("Recorded **%s** %+d on %s. Balance: **%d**\n", cellText(e.Item), e.Amount, e.Date, e.Balance))
		return nil
	})
}

type listCmd struct {
	env  *Env
	head int
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list ledger entries, newest first" }
func (*listCmd) Usage() string {
	return `allowancectl list [-n <count>]

  Lists ledger entries newest first with their running balance.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.head, "n", 0, "Show only the N most recent entries.")
}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.with(ctx, func(l Ledger) error {
		recs, err := l.Records(ctx)
		if err != nil {
			return err
		}
		entries := recs.Records
		if c.head > 0 && len(entries) > c.head {
			entries = entries[:c.head]
		}
		c.env.printMarkdown(fmt.Sprintf("**Balance:** %d\n\n%s", recs.Balance, entriesTable(entries)))
		return nil
	})
}

type summaryCmd struct {
	env   *Env
	month string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "show income and expense of a month" }
func (*summaryCmd) Usage() string {
	return `allowancectl summary [-m <YYYY-MM>]

  Sums the income and expense of one month. Defaults to the current month.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.month, "m", "", "Month as YYYY-MM. Defaults to the current month.")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.with(ctx, func(l Ledger) error {
		sum, month, err := l.Summary(ctx, strings.TrimSpace(c.month))
		if err != nil {
			return err
		}
		c.env.printMarkdown(fmt.Sprintf("## %s\n\n| Income | Expense | Net |\n|---:|---:|---:|\n| %d | %d | %d |\n",
			month, sum.Income, sum.Expense, sum.Net))
		return nil
	})
}
