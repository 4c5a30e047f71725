package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ahrav/go-thurstone/infrastructure/judges"
	"github.com/ahrav/go-thurstone/internal/application"
)

var rankCmd = &cobra.Command{
	Use:   "rank <run.yaml>",
	Short: "Rank the ideas in a run file by answering one comparison at a time.",
	Long: `rank shows every pair of active ideas once and asks which resonates more
with you. Press a or 1 for the first idea, b or 2 for the second, q to stop.

With a redis or sqlite store the session survives q and can be continued
with --resume.`,
	Args: cobra.ExactArgs(1),
	RunE: runRank,
}

func init() {
	rankCmd.Flags().String("resume", "", "continue the stored session with this ID")
	rankCmd.Flags().Bool("keep", false, "keep the session in the store after it completes")
}

func runRank(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadRunConfig(ctx, args[0])
	if err != nil {
		return err
	}
	sc := storeConfig(cfg)
	st, err := openStore(sc)
	if err != nil {
		return err
	}
	defer closeStore(st)

	svc := newService(cfg, st)
	out := cmd.OutOrStdout()
	judge := judges.NewConsoleJudge(cmd.InOrStdin(), out)
	runner := application.NewRunner(svc, judge,
		application.WithScorer(cfg.ScorerConfig()),
		application.WithJudgeAttempts(1),
		application.WithRunnerLogger(logger),
		application.WithRunnerMetrics(collector))

	id, _ := cmd.Flags().GetString("resume")
	if id == "" {
		items := cfg.DomainItems()
		warnDuplicates(out, items, cfg.Dedupe.Threshold)
		if id, err = svc.Start(ctx, items, cfg.ScorerConfig()); err != nil {
			return err
		}
	}

	result, err := runner.Resume(ctx, id)
	if err != nil {
		if errors.Is(err, judges.ErrAborted) || ctx.Err() != nil {
			return stopped(out, sc.Backend, id, args[0])
		}
		return err
	}

	if keep, _ := cmd.Flags().GetBool("keep"); !keep {
		if err := svc.Delete(ctx, id); err != nil {
			logger.Warn("failed to delete finished session", zap.String("session_id", id), zap.Error(err))
		}
	}
	return printResult(out, result)
}

// stopped tells the user how to continue an interrupted session. Memory
// sessions die with the process, so there is nothing to resume.
func stopped(w io.Writer, backend, id, path string) error {
	if backend == application.BackendMemory || backend == "" {
		_, err := fmt.Fprintln(w, "\nRanking stopped. Nothing was saved.")
		return err
	}
	_, err := fmt.Fprintf(w, "\nRanking paused. Continue with:\n  thurstone rank --resume %s %s\n", id, path)
	return err
}
