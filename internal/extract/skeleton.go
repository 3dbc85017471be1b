package extract

// Placeholders used by Skeleton.
const (
	TemplatePlaceholder = "{{}}"
	LiteralPlaceholder  = "?"
	NumberPlaceholder   = "0"
)

// Skeleton returns the tokens of text with comments dropped, each template
// block collapsed to TemplatePlaceholder, quoted literals replaced by
// LiteralPlaceholder, and numbers replaced by NumberPlaceholder. Words keep
// their case.
func Skeleton(text string) []string {
	var out []string
	lx := newLexer(text, nil)
	for {
		tok := lx.next()
		switch {
		case tok.kind == tokEOF:
			return out
		case tok.kind == tokOpen:
			out = append(out, TemplatePlaceholder)
		case tok.tmpl:
			// inside a template block
		case tok.kind == tokString:
			out = append(out, LiteralPlaceholder)
		case tok.kind == tokWord && isDigit(tok.text[0]):
			out = append(out, NumberPlaceholder)
		default:
			out = append(out, tok.text)
		}
	}
}
