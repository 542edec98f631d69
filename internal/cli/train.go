package cli

import (
	"log/slog"
	"time"

	"github.com/happyhackingspace/splitmerge"
	"github.com/happyhackingspace/splitmerge/grammar"
	"github.com/spf13/cobra"
)

func (c *CLI) newTrainCommand() *cobra.Command {
	var treebankPath string
	var packing string
	config := splitmerge.DefaultTrainConfig()

	cmd := &cobra.Command{
		Use:   "train <modelfile>",
		Short: "Learn a split grammar from a bracketed treebank",
		Args:  cobra.ExactArgs(1),
		Example: `  splitmerge train model.json --treebank train.mrg
  splitmerge train model.json --treebank train.mrg --cycles 6 --max-length 40 -v`,
		RunE: func(cmd *cobra.Command, args []string) error {
			modelPath := args[0]
			config.PackingKind = grammar.PackingKind(packing)
			slog.Info("Training grammar", "treebank", treebankPath, "cycles", config.Cycles, "output", modelPath)
			start := time.Now()
			m, err := splitmerge.TrainFile(treebankPath, config)
			if err != nil {
				return err
			}
			slog.Debug("Training completed", "duration", time.Since(start))
			if err := m.Save(modelPath); err != nil {
				return err
			}
			slog.Info("Model saved", "path", modelPath, "symbols", m.Grammar.Vocabulary.Size(), "rules", m.Grammar.NumRules())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&treebankPath, "treebank", "train.mrg", "Path to the bracketed training treebank")
	flags.StringVar(&config.StartSymbol, "start", config.StartSymbol, "Label of the tree roots")
	flags.IntVar(&config.Cycles, "cycles", config.Cycles, "Number of split-merge cycles")
	flags.IntVar(&config.EMIterations, "em-iterations", config.EMIterations, "Maximum EM iterations after each split and merge")
	flags.Float64Var(&config.Epsilon, "epsilon", config.Epsilon, "Relative log likelihood gain below which EM stops")
	flags.Float64Var(&config.MergeFraction, "merge-fraction", config.MergeFraction, "Share of splits merged back each cycle")
	flags.Float64Var(&config.Noise, "noise", config.Noise, "Random perturbation applied when splitting rules")
	flags.Int64Var(&config.Seed, "seed", config.Seed, "Random seed for split noise")
	flags.IntVar(&config.Workers, "workers", config.Workers, "Number of parallel parsing workers")
	flags.IntVar(&config.MaxLength, "max-length", 0, "Skip trees with more words (0 keeps all)")
	flags.StringVar(&packing, "packing", string(grammar.PackingShift), "Child pair packing: shift or perfect-hash")
	return cmd
}
