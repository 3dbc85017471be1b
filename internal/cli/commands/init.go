package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/modelgraph/internal/cli/output"
	"github.com/leapstack-labs/modelgraph/internal/config"
)

// InitOutput is the JSON output of the init command.
type InitOutput struct {
	Dir      string   `json:"dir"`
	Template string   `json:"template"`
	Files    []string `json:"files"`
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force, example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new modelgraph project",
		Long: `Create a modelgraph.yaml configuration file and a models/ directory
with an empty schema.yml.

Use --example to create a small working project with staging and mart
models, declared sources and an exposure.`,
		Example: `  # Initialize in current directory
  modelgraph init

  # Initialize a new directory with example models
  modelgraph init my-project --example

  # Overwrite existing files
  modelgraph init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			tmpl := templateMinimal
			if example {
				tmpl = templateExample
			}
			return runInit(cmd, dir, tmpl, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&example, "example", false, "Create an example project with sources, models and an exposure")

	return cmd
}

func runInit(cmd *cobra.Command, dir, tmpl string, force bool) error {
	c, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	cfgPath := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(cfgPath); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", cfgPath)
	}

	files, err := copyTemplate(tmpl, dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}
	c.Logger.Info("initialized project", "dir", dir, "template", tmpl, "files", len(files))

	r := c.Renderer
	out := InitOutput{Dir: dir, Template: tmpl, Files: nonNil(files)}
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Header(2, "Created")
	r.List(out.Files)
	r.Println("")
	r.Success("modelgraph project initialized in " + dir)
	r.Println("")
	r.Println("Next steps:")
	r.Println("  modelgraph parse      List models and their references")
	r.Println("  modelgraph graph      Summarize the dependency graph")
	r.Println("  modelgraph doctor     Check project health")
	return nil
}
