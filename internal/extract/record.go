package extract

import (
	"path/filepath"
	"strings"
)

// SourceRef is a (namespace, table) pair named by source().
type SourceRef struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// ID returns the graph identifier "<namespace>.<name>".
func (s SourceRef) ID() string {
	return s.Namespace + "." + s.Name
}

// ModelRecord holds everything recovered from one query file.
type ModelRecord struct {
	ID       string            `json:"id"`
	Path     string            `json:"path"`
	Text     string            `json:"-"`
	Refs     []string          `json:"refs"`
	Sources  []SourceRef       `json:"sources"`
	Config   map[string]string `json:"config"`
	CTEs     []string          `json:"ctes"`
	Features Features          `json:"features"`
	Warnings []Warning         `json:"warnings,omitempty"`
}

// ModelID returns the identifier of the model defined at path: the base
// name without its extension.
func ModelID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Extract scans text and builds the record for the file at path.
// Refs keep duplicates in textual order; CTE names are distinct.
func Extract(path, text string) *ModelRecord {
	rec := &ModelRecord{
		ID:     ModelID(path),
		Path:   path,
		Text:   text,
		Config: make(map[string]string),
	}
	s := NewScanner(text, path)
	var ctes []Match
	for m := range s.Matches() {
		switch m.Kind {
		case MatchRef:
			rec.Refs = append(rec.Refs, m.Name)
		case MatchSource:
			rec.Sources = append(rec.Sources, SourceRef{Namespace: m.Args[0], Name: m.Args[1]})
		case MatchConfig:
			for k, v := range m.Config {
				rec.Config[k] = v
			}
		case MatchCTE:
			ctes = append(ctes, m)
		}
	}
	rec.CTEs = Names(ctes, MatchCTE)
	rec.Warnings = s.Warnings()
	rec.Features = ScanFeatures(text)
	return rec
}

// SourceIDs returns the identifiers of the record's sources in order.
func (r *ModelRecord) SourceIDs() []string {
	out := make([]string, 0, len(r.Sources))
	for _, s := range r.Sources {
		out = append(out, s.ID())
	}
	return out
}
