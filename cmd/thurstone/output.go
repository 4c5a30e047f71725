package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/viper"

	"github.com/ahrav/go-thurstone/internal/domain"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

// maxLabelWidth truncates long idea texts in the table.
const maxLabelWidth = 60

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	topColor     = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow)
)

// printResult writes result in the format selected by --output.
func printResult(w io.Writer, result domain.RankedResult) error {
	switch format := viper.GetString("output"); format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case outputTable, "":
		if err := printTable(w, result); err != nil {
			return err
		}
		return printSummary(w, result)
	default:
		return fmt.Errorf("unknown output format %q (want %s or %s)", format, outputTable, outputJSON)
	}
}

func printTable(w io.Writer, result domain.RankedResult) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Rank", "Idea", "Score", "Wins"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.PerColumn = []tw.Align{tw.AlignRight, tw.AlignLeft, tw.AlignRight, tw.AlignRight}
	})

	data := make([][]string, 0, len(result.Entries))
	for _, e := range result.Entries {
		label := truncate(e.Item.Label(), maxLabelWidth)
		if e.Rank == 1 {
			label = topColor.Sprint(label)
		}
		data = append(data, []string{
			strconv.Itoa(e.Rank),
			label,
			strconv.FormatFloat(e.Score, 'f', 3, 64),
			strconv.Itoa(e.Wins),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// printSummary is the completion card: comparisons made, the top item's
// wins and the number of items ranked.
func printSummary(w io.Writer, result domain.RankedResult) error {
	top, ok := result.Top()
	if !ok {
		return nil
	}
	_, err := fmt.Fprintf(w, "\n%s %s\n  %d comparisons made · top idea won %d · %d ideas ranked (%s)\n",
		headingColor.Sprint("Winner:"), topColor.Sprint(top.Item.Label()),
		result.Comparisons, top.Wins, len(result.Entries), result.Method)
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
