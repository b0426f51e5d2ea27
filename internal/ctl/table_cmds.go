package ctl

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"allowance/internal/core"
)

type exportCmd struct {
	env    *Env
	table  string
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write a table's CSV bytes" }
func (*exportCmd) Usage() string {
	return `allowancectl export [-t allowance|goals|presets] [-o <file>]

  Writes the table exactly as stored, to stdout unless -o is given.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.table, "t", core.TableLedger.String(), "Table to export.")
	f.StringVar(&c.output, "o", "", "Output file. Defaults to stdout.")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	table, err := core.ParseTable(c.table)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}
	return c.env.with(ctx, func(l Ledger) error {
		data, err := l.Export(ctx, table)
		if err != nil {
			return err
		}
		if c.output == "" {
			_, err = c.env.Out.Write(data)
			return err
		}
		return os.WriteFile(c.output, data, 0o644)
	})
}

type importCmd struct {
	env   *Env
	table string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "replace a table with a CSV file" }
func (*importCmd) Usage() string {
	return `allowancectl import -t allowance|goals|presets <file.csv>

  Replaces the whole table with the file's content.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.table, "t", "", "Table to replace.")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.table == "" || f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	table, err := core.ParseTable(c.table)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}
	file, err := os.Open(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer file.Close()

	return c.env.with(ctx, func(l Ledger) error {
		if err := l.Import(ctx, table, file); err != nil {
			return err
		}
		c.env.printMarkdown(fmt.Sprintf("Imported **%s** into %s.\n", f.Arg(0), table))
		return nil
	})
}
