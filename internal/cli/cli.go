// Package cli implements the splitmerge command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/happyhackingspace/splitmerge/internal/banner"
	"github.com/spf13/cobra"
)

// CLI encapsulates the command-line interface with its dependencies.
type CLI struct {
	version     string
	verbose     bool
	silent      bool
	logFormat   string
	initialized bool
	rootCmd     *cobra.Command
}

// New creates a new CLI instance with the given version string.
func New(version string) *CLI {
	c := &CLI{version: version}
	c.setupCommands()
	return c
}

// setupCommands initializes all CLI commands and their configurations.
func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:     "splitmerge",
		Short:   "Latent-annotation PCFG learner",
		Version: c.version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.initApp()
		},
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	c.rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose/debug output")
	c.rootCmd.PersistentFlags().BoolVarP(&c.silent, "silent", "s", false, "Suppress all logging and banner")
	c.rootCmd.PersistentFlags().StringVar(&c.logFormat, "log-format", "text", "Log output format: text or json")

	defaultHelp := c.rootCmd.HelpFunc()
	c.rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		c.initApp()
		defaultHelp(cmd, args)
	})

	c.rootCmd.AddCommand(c.newTrainCommand())
	c.rootCmd.AddCommand(c.newParseCommand())
	c.rootCmd.AddCommand(c.newEvaluateCommand())
	c.rootCmd.AddCommand(c.newGrammarCommand())
	c.rootCmd.AddCommand(c.newUpCommand())
}

// Run executes the CLI and returns any error.
func (c *CLI) Run() error {
	return c.rootCmd.Execute()
}

// initApp configures logging and prints the banner. JSON logs go without it.
func (c *CLI) initApp() {
	if c.initialized {
		return
	}
	c.initialized = true

	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	if c.silent {
		level = slog.Level(100)
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if c.logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	if !c.silent && c.logFormat != "json" {
		fmt.Fprint(os.Stderr, banner.Banner(c.version))
	}
}
