package extract

import "sort"

// MacroUsage lists the macros a file defines and the names it calls from
// template blocks. Both lists are sorted and distinct.
type MacroUsage struct {
	Defined []string `json:"defined"`
	Called  []string `json:"called"`
}

// ScanMacros finds {% macro name(...) %} definitions and call-shaped names
// inside template blocks. Qualified calls such as pkg.name( record the last
// segment. A macro calling itself does not count as a call.
func ScanMacros(text string) MacroUsage {
	lx := newLexer(text, nil)
	defined := make(map[string]bool)
	called := make(map[string]bool)
	var current string
	var prev token
	for {
		tok := lx.next()
		if tok.kind == tokEOF {
			break
		}
		if tok.kind == tokOpen && tok.text == "{%" {
			switch kw := lx.peek(0); {
			case kw.isKeyword("macro") && lx.peek(1).kind == tokWord:
				current = lx.peek(1).text
				defined[current] = true
				lx.next()
				prev = lx.next()
				continue
			case kw.isKeyword("endmacro"):
				current = ""
			}
		}
		if tok.tmpl && tok.kind == tokWord && lx.peek(0).is(tokPunct, "(") && !isBuiltinCall(tok.text) {
			if tok.text != current || prev.is(tokPunct, ".") {
				called[tok.text] = true
			}
		}
		prev = tok
	}
	return MacroUsage{Defined: setToSorted(defined), Called: setToSorted(called)}
}

// builtinCalls are template functions that are never project macros.
var builtinCalls = map[string]bool{
	"ref": true, "source": true, "config": true, "var": true, "env_var": true,
	"is_incremental": true, "return": true, "log": true, "print": true,
	"range": true, "caller": true, "run_query": true, "set": true,
}

func isBuiltinCall(name string) bool {
	return builtinCalls[name]
}

func setToSorted(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
