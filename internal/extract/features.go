package extract

import "strings"

// Features are structural counters derived from query text. Comments and
// literals never contribute.
type Features struct {
	Lines          int `json:"lines"`
	Joins          int `json:"joins"`
	CTEs           int `json:"ctes"`
	Subqueries     int `json:"subqueries"`
	MaxDepth       int `json:"max_depth"`
	Conditionals   int `json:"conditionals"`
	Aggregates     int `json:"aggregates"`
	TemplateBlocks int `json:"template_blocks"`
}

// Map returns the counters keyed by name.
func (f Features) Map() map[string]int {
	return map[string]int{
		"lines":           f.Lines,
		"joins":           f.Joins,
		"ctes":            f.CTEs,
		"subqueries":      f.Subqueries,
		"max_depth":       f.MaxDepth,
		"conditionals":    f.Conditionals,
		"aggregates":      f.Aggregates,
		"template_blocks": f.TemplateBlocks,
	}
}

var aggregates = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
	"median": true, "stddev": true, "variance": true,
	"array_agg": true, "string_agg": true, "listagg": true, "group_concat": true,
	"count_if": true, "bool_and": true, "bool_or": true, "any_value": true,
	"approx_count_distinct": true,
}

var conditionals = map[string]bool{"if": true, "elif": true, "for": true}

// ScanFeatures counts structural signals in text. MaxDepth combines
// parenthesis nesting with CASE ... END nesting.
func ScanFeatures(text string) Features {
	var (
		f       Features
		ctes    cteTracker
		parens  int
		cases   int
		cteBody bool
	)
	lx := newLexer(text, nil)
	for {
		tok := lx.next()
		if tok.kind == tokEOF {
			break
		}
		switch {
		case tok.kind == tokOpen:
			f.TemplateBlocks++
			if w := lx.peek(0); tok.text == "{%" && w.kind == tokWord && conditionals[w.text] {
				f.Conditionals++
			}
			continue
		case tok.tmpl:
			continue
		}
		if _, ok := ctes.observe(lx, tok, parens); ok {
			f.CTEs++
			cteBody = true
			continue
		}
		switch tok.kind {
		case tokPunct:
			switch tok.text {
			case "(":
				parens++
				if !cteBody && lx.peek(0).isKeyword("select") {
					f.Subqueries++
				}
				cteBody = false
			case ")":
				if parens > 0 {
					parens--
				}
				ctes.close(parens)
			}
		case tokWord:
			switch w := strings.ToLower(tok.text); {
			case w == "join":
				f.Joins++
			case w == "case":
				cases++
			case w == "end":
				if cases > 0 {
					cases--
				}
			case aggregates[w] && lx.peek(0).is(tokPunct, "("):
				f.Aggregates++
			}
		}
		if d := parens + cases; d > f.MaxDepth {
			f.MaxDepth = d
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			f.Lines++
		}
	}
	return f
}
