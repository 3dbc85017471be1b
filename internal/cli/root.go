// Package cli provides the command-line interface for modelgraph.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/modelgraph/internal/analyzer"
	"github.com/leapstack-labs/modelgraph/internal/cli/commands"
	"github.com/leapstack-labs/modelgraph/internal/config"
	"github.com/leapstack-labs/modelgraph/internal/dag"
	"github.com/leapstack-labs/modelgraph/internal/hooks"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "modelgraph",
		Short: "modelgraph - dependency analysis for SQL model projects",
		Long: `modelgraph reads the SQL models of a dbt-style project, extracts their
ref(), source() and config() calls and builds the dependency graph.

It answers build order, cycle, lineage, impact, unused-entity, complexity
and near-duplicate questions about the project without running any SQL.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help, version and completion commands
			switch cmd.Name() {
			case "help", "completion", "__complete", "version":
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger := NewLogger(cmd.ErrOrStderr(), cfg.Verbose)
			if cfg.ConfigFile != "" {
				logger.Info("using config file", "path", cfg.ConfigFile)
			}

			ctx := cmd.Context()
			ctx = commands.WithConfig(ctx, cfg)
			ctx = commands.WithLogger(ctx, logger)
			ctx = commands.WithHooks(ctx, NewHooks(logger))
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./modelgraph.yaml)")
	rootCmd.PersistentFlags().String("project-dir", "", "Project directory (default: nearest directory with modelgraph.yaml)")
	rootCmd.PersistentFlags().String("models-dir", "", "Path to models directory")
	rootCmd.PersistentFlags().String("state", "", "Path to state database")
	rootCmd.PersistentFlags().Int("workers", 0, "Parallel parse workers (0 = GOMAXPROCS)")
	rootCmd.PersistentFlags().Duration("cache-ttl", 0, "Lifetime of cached results")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Do not read or write the state store")
	rootCmd.PersistentFlags().CountP("verbose", "v", "Verbose output (-v info, -vv debug)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (auto|text|markdown|json)")

	// Register completion for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.OutputModes, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(commands.BuildInfo{
		Version:   Version,
		Commit:    GitCommit,
		BuildDate: BuildDate,
	}))
	rootCmd.AddCommand(commands.NewInitCommand())
	rootCmd.AddCommand(commands.NewDoctorCommand())
	rootCmd.AddCommand(commands.NewParseCommand())
	rootCmd.AddCommand(commands.NewGraphCommand())
	rootCmd.AddCommand(commands.NewOrderCommand())
	rootCmd.AddCommand(commands.NewCyclesCommand())
	rootCmd.AddCommand(commands.NewLineageCommand())
	rootCmd.AddCommand(commands.NewImpactCommand())
	rootCmd.AddCommand(commands.NewCriticalPathCommand())
	rootCmd.AddCommand(commands.NewUnusedCommand())
	rootCmd.AddCommand(commands.NewTestsCommand())
	rootCmd.AddCommand(commands.NewComplexityCommand())
	rootCmd.AddCommand(commands.NewDuplicatesCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewSearchCommand())
	rootCmd.AddCommand(commands.NewExportCommand())
	rootCmd.AddCommand(commands.NewWatchCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewLogger returns a text logger on w. Verbosity 0 logs warnings, 1 adds
// info and 2 or more adds debug.
func NewLogger(w io.Writer, verbosity int) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewHooks returns a registry with the built-in logging hooks.
func NewHooks(logger *slog.Logger) *hooks.Registry {
	reg := hooks.New(logger)
	reg.OnParseStart("log", func(files int) {
		logger.Debug("parsing models", "files", files)
	})
	reg.OnParseComplete("log", func(res *analyzer.ParseResult) {
		logger.Info("parsed models", "files", res.Files, "models", len(res.Records), "collisions", len(res.Warnings))
	})
	reg.OnGraphBuilt("log", func(g dag.Reader) {
		logger.Info("built dependency graph", "nodes", g.NodeCount(), "edges", g.EdgeCount())
	})
	reg.OnAnalysisComplete("log", func(name string, _ any) {
		logger.Debug("analysis complete", "analysis", name)
	})
	return reg
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for modelgraph.

To load completions:

Bash:
  $ source <(modelgraph completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ modelgraph completion bash > /etc/bash_completion.d/modelgraph
  # macOS:
  $ modelgraph completion bash > $(brew --prefix)/etc/bash_completion.d/modelgraph

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ modelgraph completion zsh > "${fpath[1]}/_modelgraph"

Fish:
  $ modelgraph completion fish | source

  # To load completions for each session, execute once:
  $ modelgraph completion fish > ~/.config/fish/completions/modelgraph.fish

PowerShell:
  PS> modelgraph completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(w)
			case "zsh":
				return cmd.Root().GenZshCompletion(w)
			case "fish":
				return cmd.Root().GenFishCompletion(w, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(w)
			}
			return nil
		},
	}
	return cmd
}
