package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"

	"backtestlab/internal/backtest"
	"backtestlab/internal/domain"
	"backtestlab/internal/market"
	"backtestlab/internal/performance"
	"backtestlab/internal/strategy"
)

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}

func formatParams(params map[string]float64) string {
	parts := lo.Map(sortedKeys(params), func(k string, _ int) string {
		return fmt.Sprintf("%s=%g", k, params[k])
	})
	return strings.Join(parts, " ")
}

func printStrategies(w io.Writer, infos []strategy.Info) {
	for _, info := range infos {
		fmt.Fprintf(w, "%s (%s)\n  %s\n", info.ID, info.Name, info.Description)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, p := range info.Parameters {
			fmt.Fprintf(tw, "  %s\t%s\tdefault %g\trange [%g, %g]\t%s\n", p.Name, p.Type, p.Default, p.Min, p.Max, p.Description)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}
}

func printOutcome(w io.Writer, out *backtest.Outcome) {
	fmt.Fprintf(w, "run %s\n%s on %s, %s to %s, %d bars\nparameters: %s\n\n",
		out.RunID, out.Strategy, out.Symbol,
		out.Start.Format(market.DateLayout), out.End.Format(market.DateLayout),
		len(out.Result.EquityCurve), formatParams(out.Params))
	printReport(w, out.Report)
}

func printReport(w io.Writer, r performance.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := []struct {
		name  string
		value string
	}{
		{"initial capital", fmt.Sprintf("%.2f", r.Summary.InitialCapital)},
		{"final capital", fmt.Sprintf("%.2f", r.Summary.FinalCapital)},
		{"total pnl", fmt.Sprintf("%.2f", r.Summary.TotalPnL)},
		{"total return %", fmt.Sprintf("%.2f", r.Performance.TotalReturn)},
		{"annualized return %", fmt.Sprintf("%.2f", r.Performance.AnnualizedReturn)},
		{"sharpe", fmt.Sprintf("%.2f", r.Performance.SharpeRatio)},
		{"sortino", fmt.Sprintf("%.2f", r.Performance.SortinoRatio)},
		{"calmar", fmt.Sprintf("%.2f", r.Performance.CalmarRatio)},
		{"max drawdown %", fmt.Sprintf("%.2f", r.Risk.MaxDrawdown)},
		{"volatility %", fmt.Sprintf("%.2f", r.Risk.AnnualizedVolatility)},
		{"VaR 95 %", fmt.Sprintf("%.2f", r.Risk.VaR95)},
		{"CVaR 95 %", fmt.Sprintf("%.2f", r.Risk.CVaR95)},
		{"trades", fmt.Sprintf("%d", r.Trades.TotalTrades)},
		{"win rate %", fmt.Sprintf("%.2f", r.Trades.WinRate)},
		{"profit factor", fmt.Sprintf("%.2f", r.Trades.ProfitFactor)},
		{"win/loss ratio", fmt.Sprintf("%.2f", r.Trades.WinLossRatio)},
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", row.name, row.value)
	}
	tw.Flush()
}

func printComparison(w io.Writer, results []backtest.Comparison) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "strategy\treturn %\tsharpe\tmax dd %\ttrades\twin rate %\t")
	for _, c := range results {
		r := c.Report
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%d\t%.2f\t\n",
			c.Strategy, r.Performance.TotalReturn, r.Performance.SharpeRatio,
			r.Risk.MaxDrawdown, r.Trades.TotalTrades, r.Trades.WinRate)
	}
	tw.Flush()
}

func printTrades(w io.Writer, trades []domain.Trade) {
	if len(trades) == 0 {
		fmt.Fprintln(w, "no trades")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "entry\tprice\tside\tsize\texit\tprice\tpnl %\tpnl $")
	for _, t := range trades {
		fmt.Fprintf(tw, "%s\t%.2f\t%s\t%.4f\t%s\t%.2f\t%.2f\t%.2f\n",
			t.EntryDate.Format(market.DateLayout), t.EntryPrice, t.Direction, t.Size,
			t.ExitDate.Format(market.DateLayout), t.ExitPrice, t.PnLPercent, t.PnLDollars)
	}
	tw.Flush()
}

func printRuns(w io.Writer, runs []domain.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "id\tcreated\tstrategy\tticker\tperiod\treturn %\tsharpe\ttrades")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s..%s\t%.2f\t%.2f\t%d\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Strategy, r.Symbol,
			r.Start.Format(market.DateLayout), r.End.Format(market.DateLayout),
			r.TotalReturn, r.SharpeRatio, r.TotalTrades)
	}
	tw.Flush()
}
