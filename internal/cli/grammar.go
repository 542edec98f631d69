package cli

import (
	"fmt"
	"log/slog"

	"github.com/happyhackingspace/splitmerge"
	"github.com/happyhackingspace/splitmerge/grammar"
	"github.com/spf13/cobra"
)

func (c *CLI) newGrammarCommand() *cobra.Command {
	var modelPath, output string
	var unsplit bool

	cmd := &cobra.Command{
		Use:   "grammar",
		Short: "Print or export the rules of a trained grammar",
		Example: `  splitmerge grammar --model model.json -s | grep '^NP_'
  splitmerge grammar --model model.json --output grammar.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := splitmerge.Load(modelPath)
			if err != nil {
				return err
			}
			g := m.Grammar
			if unsplit {
				g = m.Unsplit
			}
			if output != "" {
				if err := grammar.Save(g, output); err != nil {
					return err
				}
				slog.Info("Grammar exported", "path", output, "symbols", g.Vocabulary.Size(), "rules", g.NumRules())
				return nil
			}
			fmt.Println(g)
			return nil
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "model.json", "Path to model file")
	cmd.Flags().StringVar(&output, "output", "", "Write the grammar as JSON to this file instead of printing rules")
	cmd.Flags().BoolVar(&unsplit, "unsplit", false, "Use the treebank grammar the model was refined from")
	return cmd
}
