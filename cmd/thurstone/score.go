package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-thurstone/internal/application"
	"github.com/ahrav/go-thurstone/internal/domain"
	"github.com/ahrav/go-thurstone/internal/ranking"
)

// matrixFile is the input of the score command. JSON is accepted as well
// since it is valid YAML.
type matrixFile struct {
	// Items label the matrix rows. Missing items are named item-0, item-1...
	Items []application.ItemConfig `yaml:"items" validate:"dive"`
	// Wins[i][j] is the number of times item i beat item j.
	Wins   *domain.WinMatrix         `yaml:"wins" validate:"required"`
	Scorer application.ScorerSection `yaml:"scorer"`
}

var scoreCmd = &cobra.Command{
	Use:   "score <matrix.yaml>",
	Short: "Score a win matrix collected elsewhere.",
	Long: `score reads a square win matrix, where row i column j counts how often item i
beat item j, and prints the ranking without asking any questions.

  items:
    - id: offline
    - id: dark-theme
    - id: sso
  wins:
    - [0, 1, 1]
    - [0, 0, 1]
    - [0, 0, 0]
  scorer:
    method: thurstone`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func runScore(cmd *cobra.Command, args []string) error {
	src, err := application.NewFileConfigSource(args[0])
	if err != nil {
		return err
	}
	var f matrixFile
	if err := src.Load(cmd.Context(), &f); err != nil {
		return err
	}

	result, err := scoreMatrix(f)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), result)
}

func scoreMatrix(f matrixFile) (domain.RankedResult, error) {
	n := f.Wins.Size()
	items := make([]domain.Item, n)
	switch len(f.Items) {
	case 0:
		for i := range items {
			items[i] = domain.Item{Index: i, ID: fmt.Sprintf("item-%d", i)}
		}
	case n:
		for i, it := range f.Items {
			items[i] = domain.Item{Index: i, ID: it.ID, Content: it.Content, Notes: it.Notes}
		}
	default:
		return domain.RankedResult{}, fmt.Errorf("%d items for a %dx%d win matrix", len(f.Items), n, n)
	}

	scorer, err := ranking.NewScorer(f.Scorer.Config())
	if err != nil {
		return domain.RankedResult{}, err
	}
	return ranking.Rank(items, f.Wins, scorer)
}
