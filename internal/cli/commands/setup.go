package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/modelgraph/internal/analyzer"
	"github.com/leapstack-labs/modelgraph/internal/cli/output"
	"github.com/leapstack-labs/modelgraph/internal/config"
	"github.com/leapstack-labs/modelgraph/internal/hooks"
	"github.com/leapstack-labs/modelgraph/internal/project"
	"github.com/leapstack-labs/modelgraph/internal/state"
)

type (
	configKey struct{}
	loggerKey struct{}
	hooksKey  struct{}
)

// WithConfig stores cfg in ctx.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithHooks stores a hook registry in ctx.
func WithHooks(ctx context.Context, reg *hooks.Registry) context.Context {
	return context.WithValue(ctx, hooksKey{}, reg)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// GetConfig retrieves the config from the command context, loading
// defaults when none was stored.
func GetConfig(ctx context.Context) (*config.Config, error) {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c, nil
	}
	return config.Load("", nil)
}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Hooks    *hooks.Registry

	store *state.Store
}

// NewCommandContext collects the dependencies stored on cmd's context.
// The cleanup function must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := GetConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	logger := GetLogger(ctx)
	reg, ok := ctx.Value(hooksKey{}).(*hooks.Registry)
	if !ok {
		reg = hooks.New(logger)
	}
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}

	c := &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Output)),
		Hooks:    reg,
	}
	cleanup := func() {
		if c.store != nil {
			if err := c.store.Close(); err != nil {
				logger.Warn("failed to close state store", "error", err)
			}
		}
	}
	return c, cleanup, nil
}

// Analysis is a loaded, parsed and graphed project.
type Analysis struct {
	Project  *project.Project
	Result   *analyzer.ParseResult
	Analyzer *analyzer.Analyzer
	// Hash identifies the content of every loaded file.
	Hash string
}

// Analyze loads the project, parses every model concurrently and builds
// the dependency graph. When the cache is enabled the run is recorded in
// the state store.
func (c *CommandContext) Analyze(ctx context.Context) (*Analysis, error) {
	proj, err := project.Load(ctx, c.Cfg.ProjectDir, project.Options{
		ModelsDir: c.Cfg.ModelsDir,
		TestsDir:  c.Cfg.TestsDir,
		MacrosDir: c.Cfg.MacrosDir,
		Logger:    c.Logger,
	})
	if err != nil {
		return nil, err
	}

	c.Hooks.EmitParseStart(len(proj.Files))
	res, err := analyzer.ParseAll(ctx, proj.Files, analyzer.ParseOptions{
		Workers: c.Cfg.Workers,
		Logger:  c.Logger,
	})
	if err != nil {
		return nil, err
	}
	c.Hooks.EmitParseComplete(res)

	a := analyzer.NewFromParse(res, c.Logger)
	c.Hooks.EmitGraphBuilt(a.Graph())

	an := &Analysis{
		Project:  proj,
		Result:   res,
		Analyzer: a,
		Hash:     state.ContentHash(proj.Inputs()),
	}
	c.recordRun(ctx, an)
	return an, nil
}

// Store opens the state store on first use. It returns nil when the cache
// is disabled.
func (c *CommandContext) Store(ctx context.Context) (*state.Store, error) {
	if !c.Cfg.Cache.Enabled {
		return nil, nil
	}
	if c.store != nil {
		return c.store, nil
	}
	if c.Cfg.StatePath != ":memory:" {
		if dir := filepath.Dir(c.Cfg.StatePath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}
	s := state.NewStore(c.Logger)
	if err := s.Open(ctx, c.Cfg.StatePath); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	c.store = s
	return s, nil
}

func (c *CommandContext) recordRun(ctx context.Context, an *Analysis) {
	s, err := c.Store(ctx)
	if err != nil {
		c.Logger.Warn("state store unavailable", "error", err)
		return
	}
	if s == nil {
		return
	}
	g := an.Analyzer.Graph()
	order, _ := g.TopologicalOrder()
	run, err := s.RecordRun(ctx, state.RunStats{
		ContentHash: an.Hash,
		Models:      len(an.Analyzer.Models()),
		Edges:       g.EdgeCount(),
		Cycles:      len(order.Blocks),
		Warnings:    len(an.Analyzer.Warnings()) + len(an.Result.ParseWarnings()),
	})
	if err != nil {
		c.Logger.Warn("failed to record run", "error", err)
		return
	}
	c.Logger.Debug("recorded run", "id", run.ID, "hash", run.ContentHash)
}

// cached returns the payload stored under key for the analysis content, or
// computes and stores it. Cache failures are logged and never fail the
// command.
func cached[T any](ctx context.Context, c *CommandContext, an *Analysis, key string, compute func() T) T {
	s, err := c.Store(ctx)
	if err != nil {
		c.Logger.Warn("state store unavailable", "error", err)
	}
	if s == nil {
		return compute()
	}

	var out T
	hit, err := s.Get(ctx, key, an.Hash, &out)
	if err != nil {
		c.Logger.Warn("cache read failed", "key", key, "error", err)
	}
	if hit {
		c.Logger.Debug("cache hit", "key", key)
		return out
	}
	out = compute()
	if err := s.Put(ctx, key, an.Hash, out, c.Cfg.Cache.TTL); err != nil {
		c.Logger.Warn("cache write failed", "key", key, "error", err)
	}
	return out
}

// reportWarnings writes structural and parse warnings to the diagnostic
// stream.
func reportWarnings(r *output.Renderer, an *Analysis) {
	for _, w := range an.Analyzer.Warnings() {
		r.Warn(w.Error())
	}
	for _, w := range an.Result.ParseWarnings() {
		r.Warn(w.Error())
	}
}
