package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"stock-trading-sim-go/internal/client"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

var userCommands = []subcommands.Command{
	&registerCmd{},
	&signinCmd{},
	&homeCmd{},
	&cashCmd{deposit: true},
	&cashCmd{},
	&orderCmd{buy: true},
	&orderCmd{},
	&quotesCmd{},
	&historyCmd{},
	&ledgerCmd{},
}

var adminCommands = []subcommands.Command{
	&listStockCmd{},
	&hoursCmd{},
	&setHoursCmd{},
	&closeCmd{},
	&reopenCmd{},
	&openAllCmd{},
	&driftCmd{},
	&usersCmd{},
}

type registerCmd struct {
	fullName string
	email    string
	password string
	admin    bool
	code     string
}

func (*registerCmd) Name() string     { return "register" }
func (*registerCmd) Synopsis() string { return "create an account" }
func (*registerCmd) Usage() string {
	return `stsctl register -name <full name> -email <email> -password <password> [-admin [-code <code>]] <username>
`
}

func (c *registerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.fullName, "name", "", "Full name.")
	f.StringVar(&c.email, "email", "", "Email address.")
	f.StringVar(&c.password, "password", "", "Password.")
	f.BoolVar(&c.admin, "admin", false, "Create an admin account.")
	f.StringVar(&c.code, "code", "", "Admin signup code, when the server requires one.")
}

func (c *registerCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one username is required.")
		return subcommands.ExitUsageError
	}
	cl, err := newClient()
	if err != nil {
		return fail(err)
	}
	account, err := cl.Register(ctx, client.Registration{
		FullName:        c.fullName,
		Username:        f.Arg(0),
		Email:           c.email,
		Password:        c.password,
		ConfirmPassword: c.password,
		SignupCode:      c.code,
	}, c.admin)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Created %s account %s (%s)\n", account.Role, account.Username, account.AccountNumber)
	return subcommands.ExitSuccess
}

type signinCmd struct {
	password string
}

func (*signinCmd) Name() string     { return "signin" }
func (*signinCmd) Synopsis() string { return "start a session and print its token" }
func (*signinCmd) Usage() string {
	return `stsctl signin -password <password> <username>

  Prints the session token. Export it as CLIENT_TOKEN for later commands.
`
}

func (c *signinCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.password, "password", "", "Password.")
}

func (c *signinCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one username is required.")
		return subcommands.ExitUsageError
	}
	cl, err := newClient()
	if err != nil {
		return fail(err)
	}
	session, err := cl.SignIn(ctx, f.Arg(0), c.password)
	if err != nil {
		return fail(err)
	}
	fmt.Println(session.Token)
	return subcommands.ExitSuccess
}

type homeCmd struct{}

func (*homeCmd) Name() string             { return "home" }
func (*homeCmd) Synopsis() string         { return "show balance, positions and returns" }
func (*homeCmd) Usage() string            { return "stsctl home\n" }
func (*homeCmd) SetFlags(_ *flag.FlagSet) {}

func (*homeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cl, err := newClient()
	if err != nil {
		return fail(err)
	}
	home, err := cl.Home(ctx)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("%s (%s)\n", home.Account.FullName, home.Account.AccountNumber)
	fmt.Printf("Balance:          %s\n", usd(home.Summary.Balance))
	fmt.Printf("Portfolio value:  %s\n", usd(home.Summary.PortfolioValue))
	fmt.Printf("Net contribution: %s\n", usd(home.Summary.NetContribution))
	fmt.Printf("Total return:     %s\n\n", usd(home.Summary.TotalReturn))
	printPositions(os.Stdout, home.Positions)
	return subcommands.ExitSuccess
}

// cashCmd is deposit or withdraw.
type cashCmd struct {
	deposit bool
}

func (c *cashCmd) Name() string {
	if c.deposit {
		return "deposit"
	}
	return "withdraw"
}

func (c *cashCmd) Synopsis() string {
	if c.deposit {
		return "add cash to the account"
	}
	return "take cash out of the account"
}

func (c *cashCmd) Usage() string            { return fmt.Sprintf("stsctl %s <amount>\n", c.Name()) }
func (*cashCmd) SetFlags(_ *flag.FlagSet) {}

func (c *cashCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one amount is required.")
		return subcommands.ExitUsageError
	}
	amount, err := decimal.NewFromString(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing amount: %v\n", err)
		return subcommands.ExitUsageError
	}
	cl, err := newClient()
	if err != nil {
		return fail(err)
	}

	move := cl.Withdraw
	if c.deposit {
		move = cl.Deposit
	}
	account, err := move(ctx, amount)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Balance: %s\n", usd(account.Balance))
	return subcommands.ExitSuccess
}

// orderCmd is buy or sell.
type orderCmd struct {
	buy bool
}

func (c *orderCmd) Name() string {
	if c.buy {
		return "buy"
	}
	return "sell"
}

func (c *orderCmd) Synopsis() string { return c.Name() + " shares at the current price" }
func (c *orderCmd) Usage() string {
	return fmt.Sprintf("stsctl %s <ticker> <quantity>\n", c.Name())
}
func (*orderCmd) SetFlags(_ *flag.FlagSet) {}

func (c *orderCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "Error: a ticker and a quantity are required.")
		return subcommands.ExitUsageError
	}
	qty, err := strconv.ParseInt(f.Arg(1), 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing quantity: %v\n", err)
		return subcommands.ExitUsageError
	}
	cl, err := newClient()
	if err != nil {
		return fail(err)
	}

	place := cl.Sell
	if c.buy {
		place = cl.Buy
	}
	order, err := place(ctx, f.Arg(0), qty)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("%s %d %s at %s, total %s\n", order.Side, order.Quantity, order.Ticker, usd(order.Price), usd(order.TotalValue))
	return subcommands.ExitSuccess
}

type quotesCmd struct{}

func (*quotesCmd) Name() string             { return "quotes" }
func (*quotesCmd) Synopsis() string         { return "list current stock prices" }
func (*quotesCmd) Usage() string            { return "stsctl quotes\n" }
func (*quotesCmd) SetFlags(_ *flag.FlagSet) {}

func (*quotesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cl, err := newClient()
	if err != nil {
		return fail(err)
	}
	quotes, err := cl.Quotes(ctx)
	if err != nil {
		return fail(err)
	}
	printQuotes(os.Stdout, quotes)
	return subcommands.ExitSuccess
}

type historyCmd struct {
	page  int
	limit int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list past orders, newest first" }
func (*historyCmd) Usage() string    { return "stsctl history [-page <n>] [-limit <n>]\n" }

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.page, "page", 1, "Page number, starting at 1.")
	f.IntVar(&c.limit, "limit", 20, "Orders per page.")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cl, err := newClient()
	if err != nil {
		return fail(err)
	}
	page, err := cl.OrderHistory(ctx, c.page, c.limit)
	if err != nil {
		return fail(err)
	}
	printOrders(os.Stdout, page.Orders)
	fmt.Printf("\npage %d, %d orders in total\n", page.Page, page.Total)
	return subcommands.ExitSuccess
}

type ledgerCmd struct{}

func (*ledgerCmd) Name() string             { return "ledger" }
func (*ledgerCmd) Synopsis() string         { return "list cash movements" }
func (*ledgerCmd) Usage() string            { return "stsctl ledger\n" }
func (*ledgerCmd) SetFlags(_ *flag.FlagSet) {}

func (*ledgerCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cl, err := newClient()
	if err != nil {
		return fail(err)
	}
	entries, err := cl.Ledger(ctx)
	if err != nil {
		return fail(err)
	}
	printLedger(os.Stdout, entries)
	return subcommands.ExitSuccess
}

type listStockCmd struct {
	name        string
	description string
	quantity    int64
	price       string
}

func (*listStockCmd) Name() string     { return "list-stock" }
func (*listStockCmd) Synopsis() string { return "list a new stock" }
func (*listStockCmd) Usage() string {
	return `stsctl list-stock -name <name> -qty <shares> -price <price> [-desc <description>] <ticker>
`
}

func (c *listStockCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Company name.")
	f.StringVar(&c.description, "desc", "", "Description.")
	f.Int64Var(&c.quantity, "qty", 0, "Shares available.")
	f.StringVar(&c.price, "price", "", "Initial price.")
}

func (c *listStockCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one ticker is required.")
		return subcommands.ExitUsageError
	}
	price, err := decimal.NewFromString(c.price)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing price: %v\n", err)
		return subcommands.ExitUsageError
	}
	cl, err := newClient()
	if err != nil {
		return fail(err)
	}
	listing, err := cl.CreateListing(ctx, client.NewListing{
		Name:        c.name,
		Description: c.description,
		Ticker:      f.Arg(0),
		Quantity:    c.quantity,
		Price:       price,
	})
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Listed %s at %s\n", listing.Ticker, usd(listing.CurrentPrice))
	return subcommands.ExitSuccess
}

type hoursCmd struct{}

func (*hoursCmd) Name() string             { return "hours" }
func (*hoursCmd) Synopsis() string         { return "show trading hours and closures" }
func (*hoursCmd) Usage() string            { return "stsctl hours\n" }
func (*hoursCmd) SetFlags(_ *flag.FlagSet) {}

func (*hoursCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cl, err := newClient()
	if err != nil {
		return fail(err)
	}
	s, err := cl.Schedule(ctx)
	if err != nil {
		return fail(err)
	}
	for _, h := range s.Hours {
		fmt.Printf("%-10s %s-%s\n", h.Day, h.Open, h.Close)
	}
	if len(s.Holidays) > 0 {
		fmt.Println("\nClosures:")
		for _, h := range s.Holidays {
			fmt.Printf("%s  %s\n", h.Date, h.Reason)
		}
	}
	return subcommands.ExitSuccess
}

type setHoursCmd struct{}

func (*setHoursCmd) Name() string             { return "set-hours" }
func (*setHoursCmd) Synopsis() string         { return "set the trading window of a weekday" }
func (*setHoursCmd) Usage() string            { return "stsctl set-hours <day> <HH:MM> <HH:MM>\n" }
func (*setHoursCmd) SetFlags(_ *flag.FlagSet) {}

func (*setHoursCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 3 {
		fmt.Fprintln(os.Stderr, "Error: a day, an open time and a close time are required.")
		return subcommands.ExitUsageError
	}
	cl, err := newClient()
	if err != nil {
		return fail(err)
	}
	h, err := cl.SetHours(ctx, f.Arg(0), f.Arg(1), f.Arg(2))
	if err != nil {
		return fail(err)
	}
	fmt.Printf("%s %s-%s\n", h.Day, h.Open, h.Close)
	return subcommands.ExitSuccess
}

type closeCmd struct {
	reason string
}

func (*closeCmd) Name() string     { return "close" }
func (*closeCmd) Synopsis() string { return "close the market on a date" }
func (*closeCmd) Usage() string    { return "stsctl close [-reason <text>] <YYYY-MM-DD>\n" }

func (c *closeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.reason, "reason", "", "Reason shown to users.")
}

func (c *closeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one date is required.")
		return subcommands.ExitUsageError
	}
	cl, err := newClient()
	if err != nil {
		return fail(err)
	}
	h, err := cl.CloseMarket(ctx, f.Arg(0), c.reason)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Market closed on %s: %s\n", h.Date, h.Reason)
	return subcommands.ExitSuccess
}

type reopenCmd struct{}

func (*reopenCmd) Name() string             { return "reopen" }
func (*reopenCmd) Synopsis() string         { return "remove the closure on a date" }
func (*reopenCmd) Usage() string            { return "stsctl reopen <YYYY-MM-DD>\n" }
func (*reopenCmd) SetFlags(_ *flag.FlagSet) {}

func (*reopenCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one date is required.")
		return subcommands.ExitUsageError
	}
	cl, err := newClient()
	if err != nil {
		return fail(err)
	}
	if err := cl.ReopenMarket(ctx, f.Arg(0)); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type openAllCmd struct{}

func (*openAllCmd) Name() string             { return "open-all" }
func (*openAllCmd) Synopsis() string         { return "remove every market closure" }
func (*openAllCmd) Usage() string            { return "stsctl open-all\n" }
func (*openAllCmd) SetFlags(_ *flag.FlagSet) {}

func (*openAllCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cl, err := newClient()
	if err != nil {
		return fail(err)
	}
	n, err := cl.OpenAllMarkets(ctx)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Removed %d closures\n", n)
	return subcommands.ExitSuccess
}

type driftCmd struct{}

func (*driftCmd) Name() string             { return "drift" }
func (*driftCmd) Synopsis() string         { return "move every price once" }
func (*driftCmd) Usage() string            { return "stsctl drift\n" }
func (*driftCmd) SetFlags(_ *flag.FlagSet) {}

func (*driftCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cl, err := newClient()
	if err != nil {
		return fail(err)
	}
	quotes, err := cl.Drift(ctx)
	if err != nil {
		return fail(err)
	}
	printQuotes(os.Stdout, quotes)
	return subcommands.ExitSuccess
}

type usersCmd struct {
	delete uint
}

func (*usersCmd) Name() string     { return "users" }
func (*usersCmd) Synopsis() string { return "list trading users, or delete one" }
func (*usersCmd) Usage() string    { return "stsctl users [-delete <id>]\n" }

func (c *usersCmd) SetFlags(f *flag.FlagSet) {
	f.UintVar(&c.delete, "delete", 0, "Delete the user with this id.")
}

func (c *usersCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cl, err := newClient()
	if err != nil {
		return fail(err)
	}
	if c.delete != 0 {
		if err := cl.DeleteUser(ctx, c.delete); err != nil {
			return fail(err)
		}
		fmt.Printf("Deleted user %d\n", c.delete)
		return subcommands.ExitSuccess
	}

	users, err := cl.Users(ctx)
	if err != nil {
		return fail(err)
	}
	for _, u := range users {
		fmt.Printf("%-5d %-20s %-30s %s\n", u.ID, u.Username, u.Email, usd(u.Balance))
	}
	return subcommands.ExitSuccess
}
