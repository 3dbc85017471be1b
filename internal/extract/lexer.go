package extract

import (
	"strings"
	"unicode/utf8"
)

// tokenKind identifies the type of token.
type tokenKind int

const (
	tokEOF    tokenKind = iota
	tokWord             // identifier, keyword or number
	tokString           // quoted literal, text holds the unescaped value
	tokPunct            // any other single character
	tokOpen             // {{ or {%
	tokClose            // }} or %}
)

type token struct {
	kind tokenKind
	text string
	off  int
	tmpl bool // inside a {{ }} or {% %} block
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

func (t token) isKeyword(kw string) bool {
	return t.kind == tokWord && strings.EqualFold(t.text, kw)
}

// lexer splits query text into tokens. Comments and whitespace are skipped.
// SQL literals escape quotes by doubling them; literals inside template
// blocks use backslash escapes.
type lexer struct {
	src        string
	pos        int
	inTemplate bool
	braces     int // open { inside the current template block
	openOff    int
	buf        []token
	warn       func(off int, msg string)
}

func newLexer(src string, warn func(off int, msg string)) *lexer {
	if warn == nil {
		warn = func(int, string) {}
	}
	return &lexer{src: src, warn: warn}
}

// next consumes and returns the next token.
func (l *lexer) next() token {
	if len(l.buf) > 0 {
		t := l.buf[0]
		l.buf = l.buf[1:]
		return t
	}
	return l.lex()
}

// peek returns the k-th upcoming token without consuming it.
func (l *lexer) peek(k int) token {
	for len(l.buf) <= k {
		l.buf = append(l.buf, l.lex())
	}
	return l.buf[k]
}

func (l *lexer) lex() token {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isSpace(c):
			l.pos++
		case !l.inTemplate && l.at("--"):
			l.skipLine()
		case !l.inTemplate && l.at("/*"):
			l.skipBlock("*/", "unterminated block comment")
		case l.at("{#"):
			l.skipBlock("#}", "unterminated template comment")
		case !l.inTemplate && (l.at("{{") || l.at("{%")):
			off := l.pos
			delim := l.src[l.pos : l.pos+2]
			l.pos += 2
			if l.pos < len(l.src) && l.src[l.pos] == '-' {
				l.pos++
			}
			l.inTemplate = true
			l.braces = 0
			l.openOff = off
			return token{kind: tokOpen, text: delim, off: off, tmpl: true}
		case l.inTemplate && l.braces == 0 && l.atClose():
			off := l.pos
			if c == '-' {
				l.pos++
			}
			delim := l.src[l.pos : l.pos+2]
			l.pos += 2
			l.inTemplate = false
			return token{kind: tokClose, text: delim, off: off, tmpl: true}
		case c == '\'' || c == '"' || c == '`':
			return l.lexString(c)
		case isIdentStart(c) || isDigit(c):
			return l.lexWord()
		default:
			off := l.pos
			_, size := utf8.DecodeRuneInString(l.src[l.pos:])
			l.pos += size
			if l.inTemplate {
				switch c {
				case '{':
					l.braces++
				case '}':
					if l.braces > 0 {
						l.braces--
					}
				}
			}
			return token{kind: tokPunct, text: l.src[off:l.pos], off: off, tmpl: l.inTemplate}
		}
	}
	if l.inTemplate {
		l.warn(l.openOff, "unterminated template block")
		l.inTemplate = false
	}
	return token{kind: tokEOF, off: len(l.src)}
}

func (l *lexer) atClose() bool {
	return l.at("}}") || l.at("%}") || l.at("-}}") || l.at("-%}")
}

func (l *lexer) lexString(quote byte) token {
	off := l.pos
	tmpl := l.inTemplate
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case tmpl && c == '\\' && l.pos+1 < len(l.src):
			sb.WriteByte(l.src[l.pos+1])
			l.pos += 2
		case c == quote:
			if !tmpl && l.pos+1 < len(l.src) && l.src[l.pos+1] == quote {
				sb.WriteByte(quote)
				l.pos += 2
				continue
			}
			l.pos++
			return token{kind: tokString, text: sb.String(), off: off, tmpl: tmpl}
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	l.warn(off, "unterminated string literal")
	return token{kind: tokString, text: sb.String(), off: off, tmpl: tmpl}
}

func (l *lexer) lexWord() token {
	off := l.pos
	if isDigit(l.src[l.pos]) {
		for l.pos < len(l.src) && (isIdentPart(l.src[l.pos]) || l.src[l.pos] == '.') {
			l.pos++
		}
	} else {
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
	}
	return token{kind: tokWord, text: l.src[off:l.pos], off: off, tmpl: l.inTemplate}
}

func (l *lexer) skipLine() {
	for l.pos < len(l.src) && l.src[l.pos] != '\n' {
		l.pos++
	}
}

func (l *lexer) skipBlock(end, msg string) {
	off := l.pos
	i := strings.Index(l.src[l.pos+2:], end)
	if i < 0 {
		l.warn(off, msg)
		l.pos = len(l.src)
		return
	}
	l.pos += 2 + i + len(end)
}

func (l *lexer) at(s string) bool {
	return strings.HasPrefix(l.src[l.pos:], s)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '$'
}
