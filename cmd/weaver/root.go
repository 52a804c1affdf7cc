package main

import (
	"fmt"

	"github.com/alvmarrod/relation-weaver/internal/config"
	"github.com/alvmarrod/relation-weaver/internal/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// options holds the command line flags
type options struct {
	configPath string
	workers    int
	output     string
	format     string
	noImages   bool
	noRender   bool
	verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "weaver [flags] <id | url | query...>",
		Short:         "Map every anime related to a starting entry",
		Long:          "Weaver follows the relations of an anime (sequels, side stories, spin-offs...) until nothing new turns up, prints the entries found and draws them as a graph.",
		Version:       version.Version,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, opts, args)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "config.json", "Configuration file path")
	flags.IntVarP(&opts.workers, "workers", "w", 0, "Concurrent fetches per round (overrides config)")
	flags.StringVarP(&opts.output, "output", "o", "", "DOT output path (overrides config)")
	flags.StringVarP(&opts.format, "format", "f", "", "Graphviz output format, e.g. svg or png (overrides config)")
	flags.BoolVar(&opts.noImages, "no-images", false, "Skip downloading cover images")
	flags.BoolVar(&opts.noRender, "no-render", false, "Write the DOT file only, do not run Graphviz")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	return rootCmd
}

// loadConfig reads the config file and applies flag overrides on top
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.ConcurrentWorkers = opts.workers
	}
	if flags.Changed("output") {
		cfg.OutputPath = opts.output
	}
	if flags.Changed("format") {
		cfg.RenderFormat = opts.format
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}
