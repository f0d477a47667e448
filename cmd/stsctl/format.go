package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"stock-trading-sim-go/internal/catalog"
	"stock-trading-sim-go/internal/models"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// usd renders a two-decimal amount as dollars, e.g. "$1,234.50".
func usd(d decimal.Decimal) string {
	cents := d.Round(2).Shift(2).IntPart()
	return money.New(cents, "USD").Display()
}

func printQuotes(w io.Writer, quotes []catalog.Quote) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tNAME\tPRICE\tOPEN\tHIGH\tLOW\tVOLUME\tAVAILABLE")
	for _, q := range quotes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			q.Ticker, q.Name, usd(q.CurrentPrice), usd(q.Open), usd(q.High), usd(q.Low), q.Volume, q.Available)
	}
	tw.Flush()
}

func printOrders(w io.Writer, orders []models.Order) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSIDE\tTICKER\tQTY\tPRICE\tTOTAL")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			o.CreatedAt.Format("2006-01-02 15:04"), o.Side, o.Ticker, o.Quantity, usd(o.Price), usd(o.TotalValue))
	}
	tw.Flush()
}

func printPositions(w io.Writer, positions []models.Position) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tQTY\tLAST PRICE")
	for _, p := range positions {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", p.Ticker, p.Quantity, usd(p.Price))
	}
	tw.Flush()
}

func printLedger(w io.Writer, entries []models.LedgerEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tAMOUNT")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.Type, usd(e.Amount))
	}
	tw.Flush()
}
