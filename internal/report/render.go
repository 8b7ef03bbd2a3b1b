// Package report renders backtest results and the run journal as terminal
// tables.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"priceaction/internal/domain"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	labelStyle  = cellStyle.Foreground(lipgloss.Color("12"))
	gainStyle   = cellStyle.Foreground(lipgloss.Color("10"))
	lossStyle   = cellStyle.Foreground(lipgloss.Color("9"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

// Summary is everything the summary table shows about one run.
type Summary struct {
	Run        domain.Run
	Strategy   string
	OpenTrades int
	Stats      TradeStats
}

// WriteSummary renders s as a two-column table to w.
func WriteSummary(w io.Writer, s Summary) error {
	sum := s.Run.Summary
	profitStyle := gainStyle
	if sum.TotalProfit < 0 {
		profitStyle = lossStyle
	}

	rows := [][]string{
		{"run", s.Run.ID},
		{"symbol", fmt.Sprintf("%s %s", s.Run.Symbol, s.Run.Interval)},
		{"range", fmt.Sprintf("%s .. %s", s.Run.From.Format(time.DateTime), s.Run.To.Format(time.DateTime))},
		{"strategy", s.Strategy},
		{"bars", FormatCount(s.Run.Bars)},
		{"initial capital", FormatMoney(sum.InitialCapital)},
		{"balance", FormatMoney(sum.Balance)},
		{"total profit", FormatSigned(sum.TotalProfit)},
		{"total fee", FormatMoney(sum.TotalFee)},
		{"trades", fmt.Sprintf("%s (%s long / %s short)", FormatCount(sum.Trades()), FormatCount(s.Stats.Longs), FormatCount(s.Stats.Shorts))},
		{"win / lose", fmt.Sprintf("%s / %s", FormatCount(sum.Wins), FormatCount(sum.Losses))},
		{"win rate", FormatPct(sum.WinRate())},
		{"profit factor", FormatRatio(s.Stats.ProfitFactor)},
		{"avg win / loss", fmt.Sprintf("%s / %s", FormatSigned(s.Stats.AvgWin), FormatSigned(s.Stats.AvgLoss))},
		{"max drawdown", FormatPct(s.Stats.MaxDrawdown)},
		{"open trades", FormatCount(s.OpenTrades)},
	}
	const profitRow = 7

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case col == 0:
				return labelStyle
			case row == profitRow:
				return profitStyle
			}
			return cellStyle
		})

	_, err := fmt.Fprintf(w, "%s\n%s\n", titleStyle.Render("backtest summary"), t.Render())
	return err
}

// WriteRuns renders journaled runs, newest first, to w.
func WriteRuns(w io.Writer, runs []domain.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no runs journaled")
		return err
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.CreatedAt.Format(time.DateTime),
			r.ID,
			r.Symbol,
			r.Interval,
			FormatCount(r.Bars),
			fmt.Sprintf("%d/%d", r.Summary.Wins, r.Summary.Losses),
			FormatPct(r.Summary.WinRate()),
			FormatSigned(r.Summary.TotalProfit),
			FormatMoney(r.Summary.Balance),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("created", "run", "symbol", "interval", "bars", "win/lose", "win rate", "profit", "balance").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 7 {
				if runs[row].Summary.TotalProfit < 0 {
					return lossStyle
				}
				return gainStyle
			}
			return cellStyle
		})

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// WriteTrades renders the closed-trade history of run to w.
func WriteTrades(w io.Writer, run domain.Run, trades []domain.ClosedTrade) error {
	if _, err := fmt.Fprintf(w, "%s\n", titleStyle.Render(fmt.Sprintf("%s %s %s", run.ID, run.Symbol, run.Interval))); err != nil {
		return err
	}
	if len(trades) == 0 {
		_, err := fmt.Fprintln(w, "no closed trades")
		return err
	}

	rows := make([][]string, 0, len(trades))
	for _, c := range trades {
		exit := 0.0
		if c.ExitPrice != nil {
			exit = *c.ExitPrice
		}
		rows = append(rows, []string{
			time.UnixMilli(c.ExitTime).UTC().Format(time.DateTime),
			c.Side.String(),
			FormatPrice(c.EntryPrice),
			FormatPrice(exit),
			FormatPrice(c.Size),
			string(c.Outcome),
			FormatSigned(c.Profit),
			FormatMoney(c.Balance),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("closed", "side", "entry", "exit", "size", "outcome", "profit", "balance").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 6 {
				if trades[row].Profit < 0 {
					return lossStyle
				}
				return gainStyle
			}
			return cellStyle
		})

	_, err := fmt.Fprintln(w, t.Render())
	return err
}
