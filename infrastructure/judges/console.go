package judges

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ahrav/go-thurstone/internal/domain"
	"github.com/ahrav/go-thurstone/internal/ports"
)

var (
	_ ports.Judge            = (*ConsoleJudge)(nil)
	_ ports.ProgressReporter = (*ConsoleJudge)(nil)
)

// ErrAborted is returned when the person at the console quits or input
// ends before a choice is made.
var ErrAborted = errors.New("judging aborted")

const progressBarWidth = 30

// ConsoleJudge asks a person at a terminal which idea resonates more.
type ConsoleJudge struct {
	in  *bufio.Reader
	out io.Writer

	title    *color.Color
	labelA   *color.Color
	labelB   *color.Color
	dim      *color.Color
	warnings *color.Color
}

// NewConsoleJudge reads choices from in and writes prompts to out.
func NewConsoleJudge(in io.Reader, out io.Writer) *ConsoleJudge {
	return &ConsoleJudge{
		in:       bufio.NewReader(in),
		out:      out,
		title:    color.New(color.Bold),
		labelA:   color.New(color.FgCyan, color.Bold),
		labelB:   color.New(color.FgMagenta, color.Bold),
		dim:      color.New(color.Faint),
		warnings: color.New(color.FgYellow),
	}
}

// Name implements ports.Judge.
func (c *ConsoleJudge) Name() string { return "console" }

// ReportProgress prints a "k / total" badge and a progress bar for the
// comparison about to be shown.
func (c *ConsoleJudge) ReportProgress(done, total int) {
	if total <= 0 {
		return
	}
	filled := done * progressBarWidth / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", progressBarWidth-filled)
	fmt.Fprintln(c.out)
	c.dim.Fprintf(c.out, "Comparison %d / %d  %s\n", done+1, total, bar)
}

// Compare implements ports.Judge. It keeps asking until it reads a valid
// choice: a/1 for the first idea, b/2 for the second, q to quit.
func (c *ConsoleJudge) Compare(ctx context.Context, a, b domain.Item) (domain.Judgment, error) {
	c.title.Fprintln(c.out, "Which idea resonates more with you?")
	c.labelA.Fprint(c.out, "  [A] ")
	fmt.Fprintln(c.out, a.Label())
	c.labelB.Fprint(c.out, "  [B] ")
	fmt.Fprintln(c.out, b.Label())

	for {
		if err := ctx.Err(); err != nil {
			return domain.Judgment{}, err
		}
		fmt.Fprint(c.out, "Choose A or B (q to quit): ")

		line, err := c.in.ReadString('\n')
		choice := strings.ToLower(strings.TrimSpace(line))
		if err != nil && choice == "" {
			if errors.Is(err, io.EOF) {
				return domain.Judgment{}, ErrAborted
			}
			return domain.Judgment{}, fmt.Errorf("read choice: %w", err)
		}

		switch choice {
		case "a", "1":
			return domain.Judgment{Winner: a.Index, Confidence: 1}, nil
		case "b", "2":
			return domain.Judgment{Winner: b.Index, Confidence: 1}, nil
		case "q", "quit", "exit":
			return domain.Judgment{}, ErrAborted
		default:
			c.warnings.Fprintf(c.out, "%q is not a choice.\n", choice)
			if err != nil {
				return domain.Judgment{}, ErrAborted
			}
		}
	}
}
