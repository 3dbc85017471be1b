// Package analyzer builds the dependency graph from parsed query files and
// derives per-model dependency reports.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/modelgraph/internal/extract"
)

// ParseOptions configures ParseAll.
type ParseOptions struct {
	// Workers caps concurrent extractions. Zero means GOMAXPROCS.
	Workers int
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// ParseResult is the merged output of ParseAll.
type ParseResult struct {
	// Records holds one record per model identifier.
	Records map[string]*extract.ModelRecord
	// Warnings holds identifier collisions found during the merge.
	Warnings []StructuralWarning
	// Files is the number of files parsed.
	Files int
}

// ParseWarnings returns the per-file extraction warnings of all records,
// ordered by identifier.
func (r *ParseResult) ParseWarnings() []extract.Warning {
	var out []extract.Warning
	for _, id := range sortedIDs(r.Records) {
		out = append(out, r.Records[id].Warnings...)
	}
	return out
}

// ParseAll extracts every file concurrently. files maps path to raw text.
// Workers only write their own result slot; records are merged afterward
// in ascending path order, so on an identifier collision the last path wins.
func ParseAll(ctx context.Context, files map[string]string, opts ParseOptions) (*ParseResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	logger.Debug("parsing files", "files", len(paths), "workers", workers)

	results := make([]*extract.ModelRecord, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = extract.Extract(p, files[p])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to parse files: %w", err)
	}

	res := &ParseResult{
		Records: make(map[string]*extract.ModelRecord, len(results)),
		Files:   len(paths),
	}
	seen := make(map[string][]string)
	for _, rec := range results {
		seen[rec.ID] = append(seen[rec.ID], rec.Path)
		res.Records[rec.ID] = rec
		for _, w := range rec.Warnings {
			logger.Warn("parse warning", "file", rec.Path, "line", w.Pos.Line, "column", w.Pos.Column, "message", w.Message)
		}
	}
	for _, id := range sortedIDs(res.Records) {
		if len(seen[id]) > 1 {
			w := StructuralWarning{Kind: DuplicateID, Node: id, Related: seen[id]}
			logger.Warn("duplicate model identifier", "model", id, "files", seen[id])
			res.Warnings = append(res.Warnings, w)
		}
	}

	logger.Debug("parsed files", "models", len(res.Records), "collisions", len(res.Warnings))
	return res, nil
}

func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
