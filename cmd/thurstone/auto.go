package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ahrav/go-thurstone/internal/application"
	"github.com/ahrav/go-thurstone/internal/domain"
)

var autoCmd = &cobra.Command{
	Use:   "auto <run.yaml>",
	Short: "Rank the ideas in a run file with an LLM or oracle judge.",
	Long: `auto judges every pair without a human. The judge section of the run file
selects an LLM ("type: llm", "model: openai/gpt-4o-mini") or a simulated
oracle that knows the true order.

API keys are read from THURSTONE_API_KEY or the provider's usual variable
(OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY).

--repeat runs several independent sessions at once, which shows how stable
the judge's ranking is.`,
	Args: cobra.ExactArgs(1),
	RunE: runAuto,
}

func init() {
	f := autoCmd.Flags()
	f.String("judge", "", "override the judge type: llm or oracle")
	f.String("model", "", "override the judge model, e.g. anthropic/claude-3-5-haiku-latest")
	f.Bool("position-swap", false, "ask every pair in both orders")
	f.Int("repeat", 1, "number of independent sessions to run")
	f.String("api-key", "", "LLM provider API key")
}

func runAuto(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadRunConfig(ctx, args[0])
	if err != nil {
		return err
	}
	if cfg, err = applyJudgeOverrides(cmd, cfg); err != nil {
		return err
	}
	repeat, _ := cmd.Flags().GetInt("repeat")
	if repeat < 1 {
		return fmt.Errorf("--repeat must be at least 1, got %d", repeat)
	}

	judge, err := buildJudge(cfg)
	if err != nil {
		return err
	}
	st, err := openStore(storeConfig(cfg))
	if err != nil {
		return err
	}
	defer closeStore(st)

	out := cmd.OutOrStdout()
	items := cfg.DomainItems()
	warnDuplicates(out, items, cfg.Dedupe.Threshold)

	runner := application.NewRunner(newService(cfg, st), judge,
		application.WithScorer(cfg.ScorerConfig()),
		application.WithConcurrency(max(cfg.Judge.Concurrency, 1)),
		application.WithRunnerLogger(logger),
		application.WithRunnerMetrics(collector))

	logger.Info("automated ranking",
		zap.String("judge", judge.Name()),
		zap.Int("items", len(items)),
		zap.Int("repeat", repeat))

	batches := make([][]domain.Item, repeat)
	for i := range batches {
		batches[i] = items
	}
	results, err := runner.RunAll(ctx, batches)
	if err != nil {
		return err
	}

	for i, res := range results {
		if repeat > 1 {
			fmt.Fprintf(out, "\n%s\n", headingColor.Sprintf("Run %d of %d", i+1, repeat))
		}
		if err := printResult(out, res); err != nil {
			return err
		}
	}
	return nil
}

// applyJudgeOverrides returns a copy of cfg with the command-line judge
// settings applied, re-validated since the file was checked without them.
func applyJudgeOverrides(cmd *cobra.Command, loaded *application.RunConfig) (*application.RunConfig, error) {
	cfg := *loaded
	f := cmd.Flags()
	if f.Changed("judge") {
		cfg.Judge.Type, _ = f.GetString("judge")
	}
	if f.Changed("model") {
		cfg.Judge.Model, _ = f.GetString("model")
	}
	if f.Changed("position-swap") {
		cfg.Judge.PositionSwap, _ = f.GetBool("position-swap")
	}
	if !f.Changed("judge") && !f.Changed("model") {
		return &cfg, nil
	}
	loader, err := application.NewConfigLoader()
	if err != nil {
		return nil, err
	}
	if err := loader.Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
