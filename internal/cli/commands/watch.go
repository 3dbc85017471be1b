package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/modelgraph/internal/cli/output"
	"github.com/leapstack-labs/modelgraph/internal/extract"
	"github.com/leapstack-labs/modelgraph/internal/project"
)

// WatchEvent is one JSON line written by the watch command per analysis.
type WatchEvent struct {
	Time     time.Time `json:"time"`
	Changed  []string  `json:"changed"`
	Models   int       `json:"models"`
	Edges    int       `json:"edges"`
	Cycles   int       `json:"cycles"`
	Warnings int       `json:"warnings"`
	Affected []string  `json:"affected"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-analyze the project when models change",
		Long: `Watch the models directory and rebuild the dependency graph whenever a
model or schema file changes. Each rebuild reports graph totals and the
models downstream of the changed files. Stop with Ctrl+C.`,
		Example: `  modelgraph watch
  modelgraph watch --debounce 500ms -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, debounce)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", project.DefaultDebounce, "Quiet period before re-analyzing")

	return cmd
}

func runWatch(cmd *cobra.Command, debounce time.Duration) error {
	c, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := project.NewWatcher(c.Cfg.ModelsDir, project.WatchOptions{Debounce: debounce, Logger: c.Logger})
	if err != nil {
		return err
	}

	rebuild := func(changed []string) {
		if err := watchRebuild(ctx, c, changed); err != nil {
			c.Logger.Error("analysis failed", "error", err)
			c.Renderer.Warn(err.Error())
		}
	}
	rebuild(nil)
	if c.Renderer.EffectiveMode() != output.ModeJSON {
		c.Renderer.Println(c.Renderer.Styles().Muted.Render("Watching " + c.Cfg.ModelsDir + " (Ctrl+C to stop)"))
	}
	return w.Run(ctx, rebuild)
}

func watchRebuild(ctx context.Context, c *CommandContext, changed []string) error {
	an, err := c.Analyze(ctx)
	if err != nil {
		return err
	}
	g := an.Analyzer.Graph()
	order, _ := g.TopologicalOrder()

	var ids []string
	for _, path := range changed {
		if !project.IsModelFile(path) {
			continue
		}
		if id := extract.ModelID(path); g.HasNode(id) {
			ids = append(ids, id)
		}
	}
	ev := WatchEvent{
		Time:     time.Now().UTC(),
		Changed:  nonNil(relPaths(c.Cfg.ProjectDir, changed)),
		Models:   len(an.Analyzer.Models()),
		Edges:    g.EdgeCount(),
		Cycles:   len(order.Blocks),
		Warnings: len(an.Analyzer.Warnings()) + len(an.Result.ParseWarnings()),
		Affected: nonNil(g.AffectedNodes(ids)),
	}
	c.Hooks.EmitAnalysisComplete("watch", ev)

	r := c.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(ev)
	}
	stamp := r.Styles().Muted.Render(ev.Time.Local().Format("15:04:05"))
	if len(ev.Changed) > 0 {
		r.Printf("%s changed: %s\n", stamp, output.FormatList(ev.Changed))
	}
	summary := fmt.Sprintf("%d models, %d edges, %d cycles, %d warnings", ev.Models, ev.Edges, ev.Cycles, ev.Warnings)
	if ev.Cycles > 0 || ev.Warnings > 0 {
		r.Printf("%s %s\n", stamp, r.Styles().Warning.Render(summary))
	} else {
		r.Printf("%s %s\n", stamp, r.Styles().Success.Render(summary))
	}
	if len(ids) > 0 {
		r.Printf("%s affected: %s\n", stamp, output.FormatList(ev.Affected))
	}
	return nil
}

func relPaths(base string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if rel, err := filepath.Rel(base, p); err == nil {
			out[i] = filepath.ToSlash(rel)
		} else {
			out[i] = p
		}
	}
	return out
}
