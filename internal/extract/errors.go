package extract

import "fmt"

// Position identifies a location in a query file.
type Position struct {
	File   string
	Line   int // 1-based
	Column int // 1-based, in bytes
	Offset int // 0-based byte offset
}

func (p Position) String() string {
	if p.File != "" {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Warning is a recoverable problem found while scanning a query file.
// Extraction always continues past a warning with whatever was closed.
type Warning struct {
	Pos     Position
	Message string
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s: %s", w.Pos, w.Message)
}
