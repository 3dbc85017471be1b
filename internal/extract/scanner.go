// Package extract recovers model references, source references, config
// calls, and CTE names from templated query text without executing the
// template language.
package extract

import (
	"fmt"
	"iter"
	"sort"
	"strings"
)

// MatchKind identifies the type of a recognized construct.
type MatchKind int

const (
	MatchRef MatchKind = iota
	MatchSource
	MatchConfig
	MatchCTE
)

func (k MatchKind) String() string {
	switch k {
	case MatchRef:
		return "ref"
	case MatchSource:
		return "source"
	case MatchConfig:
		return "config"
	case MatchCTE:
		return "cte"
	default:
		return fmt.Sprintf("MatchKind(%d)", int(k))
	}
}

// Match is one recognized construct, in textual order.
type Match struct {
	Kind   MatchKind
	Pos    Position
	Name   string            // model name, "<ns>.<name>" for sources, CTE name
	Args   []string          // literal positional arguments
	Config map[string]string // config() keyword arguments
}

// Scanner walks query text once, yielding matches lazily.
type Scanner struct {
	file     string
	text     string
	lines    []int // byte offset of each line start
	warnings []Warning
}

// NewScanner creates a scanner over text. file is used only for positions.
func NewScanner(text, file string) *Scanner {
	lines := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, i+1)
		}
	}
	return &Scanner{file: file, text: text, lines: lines}
}

// Warnings returns the warnings collected by the last complete iteration
// of Matches.
func (s *Scanner) Warnings() []Warning {
	return s.warnings
}

// Matches returns the recognized constructs left to right.
func (s *Scanner) Matches() iter.Seq[Match] {
	return func(yield func(Match) bool) {
		s.warnings = nil
		defer s.sortWarnings()
		lx := newLexer(s.text, s.warn)
		var ctes cteTracker
		var prev token
		depth := 0
		for {
			tok := lx.next()
			if tok.kind == tokEOF {
				return
			}
			if tok.kind == tokWord && !prev.is(tokPunct, ".") && lx.peek(0).is(tokPunct, "(") {
				if kind, ok := callees[tok.text]; ok {
					m, n, ok := s.readCall(lx, kind, tok)
					if ok {
						for range n {
							prev = lx.next()
						}
						if m != nil && !yield(*m) {
							return
						}
						continue
					}
				}
			}
			if !tok.tmpl {
				if name, ok := ctes.observe(lx, tok, depth); ok {
					if !yield(Match{Kind: MatchCTE, Pos: s.pos(tok.off), Name: name}) {
						return
					}
				}
			}
			if tok.kind == tokPunct {
				switch tok.text {
				case "(":
					depth++
				case ")":
					if depth > 0 {
						depth--
					}
					ctes.close(depth)
				}
			}
			prev = tok
		}
	}
}

var callees = map[string]MatchKind{
	"ref":    MatchRef,
	"source": MatchSource,
	"config": MatchConfig,
}

type argKind int

const (
	argLiteral argKind = iota // quoted string
	argBare                   // identifier or number
	argKeyword                // key=value
	argExpr                   // anything else
)

type arg struct {
	kind   argKind
	key    string
	value  string
	scalar bool // keyword value is a scalar
	off    int
}

// readCall parses the argument list of callee, whose "(" is the next token.
// It returns the match, the number of tokens making up the call (including
// both parentheses), and false when the list never closes. A nil match with
// ok set means the call was well formed but its arguments were not usable.
func (s *Scanner) readCall(lx *lexer, kind MatchKind, callee token) (*Match, int, bool) {
	args, n, ok := s.readArgs(lx, callee)
	if !ok {
		return nil, 0, false
	}
	m := &Match{Kind: kind, Pos: s.pos(callee.off)}
	var positional []arg
	for _, a := range args {
		if a.kind != argKeyword {
			positional = append(positional, a)
		}
	}
	switch kind {
	case MatchRef:
		if len(positional) < 1 || len(positional) > 2 || !allLiteral(positional) {
			s.warn(callee.off, "ref() expects one or two string literal arguments")
			return nil, n, true
		}
		for _, a := range positional {
			m.Args = append(m.Args, a.value)
		}
		m.Name = m.Args[len(m.Args)-1]
		if blank(m.Args...) {
			s.warn(callee.off, "ref() has an empty model name")
			return nil, n, true
		}
	case MatchSource:
		if len(positional) != 2 || !allLiteral(positional) {
			s.warn(callee.off, "source() expects two string literal arguments")
			return nil, n, true
		}
		m.Args = []string{positional[0].value, positional[1].value}
		if blank(m.Args...) {
			s.warn(callee.off, "source() has an empty source or table name")
			return nil, n, true
		}
		m.Name = m.Args[0] + "." + m.Args[1]
	case MatchConfig:
		m.Config = make(map[string]string)
		for _, a := range args {
			switch {
			case a.kind != argKeyword:
				s.warn(a.off, "config() argument is not key=value")
			case !a.scalar:
				s.warn(a.off, fmt.Sprintf("config value for %q is not a scalar, skipped", a.key))
			default:
				m.Config[a.key] = a.value
			}
		}
	}
	return m, n, true
}

func blank(vals ...string) bool {
	for _, v := range vals {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

func allLiteral(args []arg) bool {
	for _, a := range args {
		if a.kind != argLiteral {
			return false
		}
	}
	return true
}

// readArgs looks ahead from the "(" following callee and splits the
// argument list on top-level commas. Nothing is consumed.
func (s *Scanner) readArgs(lx *lexer, callee token) ([]arg, int, bool) {
	var (
		args []arg
		cur  []token
		nest int
	)
	flush := func() {
		if len(cur) > 0 {
			args = append(args, classify(cur))
		}
		cur = nil
	}
	for k := 1; ; k++ {
		t := lx.peek(k)
		switch t.kind {
		case tokEOF, tokOpen, tokClose:
			s.warn(callee.off, fmt.Sprintf("unbalanced parentheses in %s() call", callee.text))
			return nil, 0, false
		case tokPunct:
			switch t.text {
			case "(", "[", "{":
				nest++
			case ")", "]", "}":
				if nest == 0 && t.text == ")" {
					flush()
					return args, k + 1, true
				}
				if nest > 0 {
					nest--
				}
			case ",":
				if nest == 0 {
					flush()
					continue
				}
			}
		}
		cur = append(cur, t)
	}
}

func classify(toks []token) arg {
	a := arg{off: toks[0].off}
	switch {
	case len(toks) == 1 && toks[0].kind == tokString:
		a.kind, a.value = argLiteral, toks[0].text
	case len(toks) == 1 && toks[0].kind == tokWord:
		a.kind, a.value = argBare, toks[0].text
	case len(toks) >= 3 && toks[0].kind == tokWord && toks[1].is(tokPunct, "=") && !toks[2].is(tokPunct, "="):
		a.kind, a.key = argKeyword, toks[0].text
		a.value, a.scalar = scalarValue(toks[2:])
	default:
		a.kind = argExpr
	}
	return a
}

func scalarValue(toks []token) (string, bool) {
	switch {
	case len(toks) == 1 && (toks[0].kind == tokString || toks[0].kind == tokWord):
		return toks[0].text, true
	case len(toks) == 2 && toks[0].is(tokPunct, "-") && toks[1].kind == tokWord:
		return "-" + toks[1].text, true
	}
	return "", false
}

func (s *Scanner) sortWarnings() {
	sort.SliceStable(s.warnings, func(i, j int) bool {
		return s.warnings[i].Pos.Offset < s.warnings[j].Pos.Offset
	})
}

func (s *Scanner) warn(off int, msg string) {
	s.warnings = append(s.warnings, Warning{Pos: s.pos(off), Message: msg})
}

func (s *Scanner) pos(off int) Position {
	line := sort.Search(len(s.lines), func(i int) bool { return s.lines[i] > off }) - 1
	return Position{
		File:   s.file,
		Line:   line + 1,
		Column: off - s.lines[line] + 1,
		Offset: off,
	}
}

// cteTracker recognizes "<name> as (" openers that follow WITH or a
// top-level comma of a CTE list.
type cteTracker struct {
	frames []cteFrame
}

type cteFrame struct {
	depth      int
	expectName bool
}

// observe feeds one non-template token at paren depth and reports a CTE name
// when tok opens a CTE block. The "as" keyword and any MATERIALIZED hint are
// consumed from lx.
func (c *cteTracker) observe(lx *lexer, tok token, depth int) (string, bool) {
	if tok.kind == tokOpen || tok.kind == tokClose {
		return "", false
	}
	if tok.isKeyword("with") {
		c.frames = append(c.frames, cteFrame{depth: depth, expectName: true})
		return "", false
	}
	if len(c.frames) == 0 {
		return "", false
	}
	top := &c.frames[len(c.frames)-1]
	if top.depth != depth {
		return "", false
	}
	switch {
	case tok.is(tokPunct, ","):
		top.expectName = true
	case tok.kind == tokWord && top.expectName:
		if tok.isKeyword("recursive") {
			return "", false
		}
		if n := cteHeader(lx); n > 0 {
			for range n {
				lx.next()
			}
			top.expectName = false
			return tok.text, true
		}
		c.frames = c.frames[:len(c.frames)-1]
	case tok.kind == tokWord:
		c.frames = c.frames[:len(c.frames)-1]
	}
	return "", false
}

// close drops frames opened deeper than depth.
func (c *cteTracker) close(depth int) {
	for len(c.frames) > 0 && c.frames[len(c.frames)-1].depth > depth {
		c.frames = c.frames[:len(c.frames)-1]
	}
}

// cteHeader returns the number of tokens between a CTE name and its "(",
// or 0 when the upcoming tokens are not "as [not] [materialized] (".
func cteHeader(lx *lexer) int {
	if !lx.peek(0).isKeyword("as") {
		return 0
	}
	k := 1
	if lx.peek(k).isKeyword("not") {
		k++
	}
	if lx.peek(k).isKeyword("materialized") {
		k++
	} else if k == 2 {
		return 0
	}
	if !lx.peek(k).is(tokPunct, "(") {
		return 0
	}
	return k
}

// Names returns the distinct names of matches of the given kind in first
// occurrence order.
func Names(ms []Match, kind MatchKind) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range ms {
		if m.Kind != kind || seen[m.Name] {
			continue
		}
		seen[m.Name] = true
		out = append(out, m.Name)
	}
	return out
}

