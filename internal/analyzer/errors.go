package analyzer

import (
	"fmt"
	"strings"
)

// NotFoundError is returned when a query names a node absent from the graph.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("node %q not found in dependency graph", e.ID)
}

// WarningKind classifies a StructuralWarning.
type WarningKind int

const (
	// Dangling marks a reference to a model that no file defines.
	Dangling WarningKind = iota
	// DuplicateID marks two files that produce the same model identifier.
	DuplicateID
	// SelfLoop marks a model that references itself.
	SelfLoop
)

func (k WarningKind) String() string {
	switch k {
	case Dangling:
		return "dangling"
	case DuplicateID:
		return "duplicate_id"
	case SelfLoop:
		return "self_loop"
	default:
		return fmt.Sprintf("WarningKind(%d)", int(k))
	}
}

// MarshalText renders the kind by name in JSON output.
func (k WarningKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// StructuralWarning is a graph-level problem reported alongside results.
// It never stops analysis.
type StructuralWarning struct {
	Kind WarningKind `json:"kind"`
	Node string      `json:"node"`
	// Related holds referrers for Dangling and file paths for DuplicateID.
	Related []string `json:"related,omitempty"`
}

func (w StructuralWarning) Error() string {
	switch w.Kind {
	case Dangling:
		return fmt.Sprintf("reference to undefined model %q from %s", w.Node, strings.Join(w.Related, ", "))
	case DuplicateID:
		return fmt.Sprintf("model %q defined by multiple files (%s), using %s",
			w.Node, strings.Join(w.Related, ", "), w.Related[len(w.Related)-1])
	case SelfLoop:
		return fmt.Sprintf("model %q references itself", w.Node)
	default:
		return fmt.Sprintf("%s: %s", w.Kind, w.Node)
	}
}
