package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/happyhackingspace/splitmerge"
	"github.com/happyhackingspace/splitmerge/internal/treebank"
	"github.com/happyhackingspace/splitmerge/tree"
	"github.com/spf13/cobra"
)

func (c *CLI) newParseCommand() *cobra.Command {
	var modelPath string
	var viterbi, unbinarize bool

	cmd := &cobra.Command{
		Use:   "parse [treebank]",
		Short: "Annotate gold trees with their best split labels",
		Args:  cobra.MaximumNArgs(1),
		Example: `  # Max-posterior annotation of every tree in a file
  splitmerge parse dev.mrg --model model.json

  # Viterbi derivations with their log probabilities
  splitmerge parse dev.mrg --viterbi

  # Trees from stdin
  echo "(S (NP (DT the) (NN dog)) (VP (VBZ barks)))" | splitmerge parse -s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := splitmerge.Load(modelPath)
			if err != nil {
				return err
			}
			opts := treebank.DefaultOptions()
			opts.StartSymbol = m.StartSymbol

			var trees []*tree.Node
			if len(args) == 0 {
				if isStdinTerminal() {
					return cmd.Help()
				}
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				trees = treebank.Read(data, opts)
			} else if trees, err = treebank.Load(args[0], opts); err != nil {
				return err
			}
			slog.Debug("Parsing", "trees", len(trees))

			for i, t := range trees {
				var best *tree.Node
				var score float64
				if viterbi {
					best, score, err = m.ParseViterbi(t)
				} else {
					best, err = m.Parse(t)
				}
				if err != nil {
					slog.Warn("Cannot annotate tree", "index", i, "error", err)
					fmt.Println("()")
					continue
				}
				if unbinarize {
					best = best.Unbinarize()
				}
				if viterbi {
					fmt.Printf("%.6f\t%s\n", score, best)
				} else {
					fmt.Println(best)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "model.json", "Path to model file")
	cmd.Flags().BoolVar(&viterbi, "viterbi", false, "Print the most probable derivation and its log probability")
	cmd.Flags().BoolVar(&unbinarize, "unbinarize", false, "Splice binarization nodes back into their parents")
	return cmd
}

func isStdinTerminal() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
