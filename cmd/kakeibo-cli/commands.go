package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/google/subcommands"

	"kakeibo/internal/client"
	"kakeibo/internal/core"
)

// yen renders an amount in whole yen, the currency the ledger counts in.
func yen(amount int64) string {
	return money.New(amount, money.JPY).Display()
}

type listCmd struct {
	server  string
	account string
	search  string
	order   string
	unit    string
	period  string
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list transactions with running balances" }
func (*listCmd) Usage() string {
	return `kakeibo-cli list [-account <name>] [-search <text>] [-order asc|desc] [-unit month|day|year -period <key>]

  Prints the filtered view with balances derived for exactly that view.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.server, "server", "", "API base URL (defaults to $KAKEIBO_SERVER)")
	f.StringVar(&c.account, "account", "", "restrict to one account")
	f.StringVar(&c.search, "search", "", "free-text filter")
	f.StringVar(&c.order, "order", "", "display order, asc or desc")
	f.StringVar(&c.unit, "unit", "", "period unit: day, month or year")
	f.StringVar(&c.period, "period", "", "period key, e.g. 2025-06 for unit month")
}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	unit, err := core.ParseUnit(c.unit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	dir, ok := core.ParseDirection(c.order)
	if !ok {
		fmt.Fprintln(os.Stderr, "Error: order must be asc or desc")
		return subcommands.ExitUsageError
	}

	api := client.New(serverURL(c.server))
	result, err := api.ListTransactions(ctx, client.ListQuery{
		Account: c.account,
		Search:  c.search,
		Order:   dir,
		Unit:    unit,
		Period:  c.period,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tACCOUNT\tITEM\tTYPE\tAMOUNT\tBALANCE")
	for _, tx := range result.Transactions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.ID, tx.Date.String(), tx.Account, tx.Item, tx.Type, yen(tx.Amount), yen(tx.Balance))
	}
	tw.Flush()
	fmt.Printf("\nBalance: %s (%d transactions)\n", yen(result.Balance), len(result.Transactions))
	return subcommands.ExitSuccess
}

type addCmd struct {
	server  string
	account string
	date    string
	item    string
	typ     string
	amount  int64
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a new transaction" }
func (*addCmd) Usage() string {
	return `kakeibo-cli add -account <name> -item <label> -type income|expense -amount <yen> [-date <YYYY-MM-DD [HH:MM[:SS]]>]

  Records one transaction. The date defaults to today.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.server, "server", "", "API base URL (defaults to $KAKEIBO_SERVER)")
	f.StringVar(&c.account, "account", "", "account the transaction belongs to")
	f.StringVar(&c.date, "date", "", "transaction date, defaults to today")
	f.StringVar(&c.item, "item", "", "item label")
	f.StringVar(&c.typ, "type", "expense", "income or expense")
	f.Int64Var(&c.amount, "amount", 0, "amount in yen, must be positive")
}

func (c *addCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	date := c.date
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	when, err := core.ParseWhen(date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	tx := core.Transaction{
		Account: c.account,
		Date:    when,
		Item:    c.item,
		Type:    core.Type(c.typ),
		Amount:  c.amount,
	}
	if err := tx.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	api := client.New(serverURL(c.server))
	created, err := api.CreateTransaction(ctx, tx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Recorded #%d: %s %s %s (%s)\n",
		created.ID, created.Date.String(), created.Item, yen(created.Amount), created.Type)
	return subcommands.ExitSuccess
}

type summaryCmd struct {
	server  string
	account string
	unit    string
	period  string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "income/expense totals and per-item breakdowns" }
func (*summaryCmd) Usage() string {
	return `kakeibo-cli summary [-account <name>] [-unit month|day|year -period <key>]

  Shows totals and per-item breakdowns for the filtered view.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.server, "server", "", "API base URL (defaults to $KAKEIBO_SERVER)")
	f.StringVar(&c.account, "account", "", "restrict to one account")
	f.StringVar(&c.unit, "unit", "", "period unit: day, month or year")
	f.StringVar(&c.period, "period", "", "period key, e.g. 2025-06")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	unit, err := core.ParseUnit(c.unit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	api := client.New(serverURL(c.server))
	summary, err := api.Summary(ctx, client.ListQuery{
		Account: c.account,
		Unit:    unit,
		Period:  c.period,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Income:  %s\n", yen(summary.Income))
	fmt.Printf("Expense: %s\n", yen(summary.Expense))
	fmt.Printf("Net:     %s\n", yen(summary.Net))

	printBreakdown := func(title string, rows []core.ItemAmount) {
		if len(rows) == 0 {
			return
		}
		fmt.Printf("\n%s:\n", title)
		tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		for _, row := range rows {
			fmt.Fprintf(tw, "  %s\t%s\n", row.Item, yen(row.Amount))
		}
		tw.Flush()
	}
	printBreakdown("Income by item", summary.IncomeByItem)
	printBreakdown("Expense by item", summary.ExpenseByItem)
	return subcommands.ExitSuccess
}

type exportCmd struct {
	server string
	out    string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "download the ledger as CSV" }
func (*exportCmd) Usage() string {
	return `kakeibo-cli export [-o <file>]

  Writes the full ledger CSV to the given file, or stdout.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.server, "server", "", "API base URL (defaults to $KAKEIBO_SERVER)")
	f.StringVar(&c.out, "o", "", "output file, stdout when empty")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var w io.Writer = os.Stdout
	if c.out != "" {
		f, err := os.Create(c.out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		defer f.Close()
		w = f
	}

	api := client.New(serverURL(c.server))
	if err := api.ExportCSV(ctx, w); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if c.out != "" {
		fmt.Printf("Exported ledger to %s\n", c.out)
	}
	return subcommands.ExitSuccess
}

type importCmd struct {
	server string
	mode   string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "upload a ledger CSV" }
func (*importCmd) Usage() string {
	return `kakeibo-cli import [-mode append|replace] <file>

  Uploads a ledger CSV. Any invalid row rejects the whole file.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.server, "server", "", "API base URL (defaults to $KAKEIBO_SERVER)")
	f.StringVar(&c.mode, "mode", "append", "append to or replace the existing ledger")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected exactly one file argument")
		return subcommands.ExitUsageError
	}

	file, err := os.Open(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer file.Close()

	api := client.New(serverURL(c.server))
	count, err := api.ImportCSV(ctx, file, c.mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Imported %d transactions (%s mode)\n", count, c.mode)
	return subcommands.ExitSuccess
}
