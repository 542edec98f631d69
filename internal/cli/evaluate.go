package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/happyhackingspace/splitmerge"
	"github.com/happyhackingspace/splitmerge/internal/treebank"
	"github.com/spf13/cobra"
)

func (c *CLI) newEvaluateCommand() *cobra.Command {
	var modelPath, treebankPath string
	var maxLength int

	cmd := &cobra.Command{
		Use:     "evaluate",
		Short:   "Score held-out gold trees with a trained grammar",
		Example: `  splitmerge evaluate --model model.json --treebank dev.mrg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := splitmerge.Load(modelPath)
			if err != nil {
				return err
			}
			opts := treebank.DefaultOptions()
			opts.StartSymbol = m.StartSymbol
			opts.MaxLength = maxLength
			trees, err := treebank.Load(treebankPath, opts)
			if err != nil {
				return err
			}
			slog.Info("Evaluating", "trees", len(trees), "treebank", treebankPath)
			start := time.Now()
			result, err := splitmerge.Evaluate(m, trees)
			if err != nil {
				return err
			}
			slog.Debug("Evaluation completed", "duration", time.Since(start))

			fmt.Printf("Sentences: %d scored, %d skipped (%d words)\n", result.Sentences, result.Skipped, result.Words)
			fmt.Printf("Log likelihood: %.4f (%.4f per sentence)\n", result.LogLikelihood, result.AverageLogLikelihood())
			fmt.Printf("Perplexity per word: %.4f\n", result.Perplexity())
			return nil
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "model.json", "Path to model file")
	cmd.Flags().StringVar(&treebankPath, "treebank", "dev.mrg", "Path to the bracketed evaluation treebank")
	cmd.Flags().IntVar(&maxLength, "max-length", 0, "Skip trees with more words (0 keeps all)")
	return cmd
}
