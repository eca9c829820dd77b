// Package template implements the prompt-template mini language: literal
// text interleaved with {{ expression }} substitutions and
// {% for %} / {% if %} blocks. One compiled template serves both rendering
// and static variable-schema inference.
package template

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokText tokenKind = iota
	tokVarBegin
	tokVarEnd
	tokBlockBegin
	tokBlockEnd
	tokIdent
	tokString
	tokNumber
	tokDot
	tokLBracket
	tokRBracket
	tokLParen
	tokComma
	tokEOF
)

type token struct {
	kind tokenKind
	val  string
	line int
}

type lexer struct {
	src    string
	pos    int
	line   int
	tokens []token
}

func lex(src string) ([]token, error) {
	l := &lexer{src: src, line: 1}
	for l.pos < len(l.src) {
		if strings.HasPrefix(l.src[l.pos:], "{{") {
			l.emit(tokVarBegin, "{{")
			l.pos += 2
			if err := l.lexExpr("}}"); err != nil {
				return nil, err
			}
			continue
		}
		if strings.HasPrefix(l.src[l.pos:], "{%") {
			l.emit(tokBlockBegin, "{%")
			l.pos += 2
			if err := l.lexExpr("%}"); err != nil {
				return nil, err
			}
			continue
		}
		l.lexText()
	}
	l.emit(tokEOF, "")
	return l.tokens, nil
}

func (l *lexer) emit(kind tokenKind, val string) {
	l.tokens = append(l.tokens, token{kind: kind, val: val, line: l.line})
}

// lexText consumes literal text up to the next tag opener.
func (l *lexer) lexText() {
	start := l.pos
	for l.pos < len(l.src) {
		if strings.HasPrefix(l.src[l.pos:], "{{") || strings.HasPrefix(l.src[l.pos:], "{%") {
			break
		}
		if l.src[l.pos] == '\n' {
			l.line++
		}
		l.pos++
	}
	if l.pos > start {
		l.tokens = append(l.tokens, token{kind: tokText, val: l.src[start:l.pos], line: l.line})
	}
}

// lexExpr tokenizes inside a tag until the given closer.
func (l *lexer) lexExpr(closer string) error {
	closeKind := tokVarEnd
	if closer == "%}" {
		closeKind = tokBlockEnd
	}
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case strings.HasPrefix(l.src[l.pos:], closer):
			l.emit(closeKind, closer)
			l.pos += 2
			return nil
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '\n':
			l.line++
			l.pos++
		case c == '.':
			l.emit(tokDot, ".")
			l.pos++
		case c == '[':
			l.emit(tokLBracket, "[")
			l.pos++
		case c == ']':
			l.emit(tokRBracket, "]")
			l.pos++
		case c == '(':
			l.emit(tokLParen, "(")
			l.pos++
		case c == ',':
			l.emit(tokComma, ",")
			l.pos++
		case c == '\'' || c == '"':
			if err := l.lexString(c); err != nil {
				return err
			}
		case c >= '0' && c <= '9':
			l.lexNumber()
		case isIdentStart(rune(c)):
			l.lexIdent()
		default:
			return l.errUnexpected(string(c))
		}
	}
	return &SyntaxError{
		Message: "unexpected end of template inside tag, expected " + closer,
		Line:    l.line,
		Snippet: l.currentLine(),
	}
}

func (l *lexer) lexString(quote byte) error {
	l.pos++ // opening quote
	start := l.pos
	for l.pos < len(l.src) {
		if l.src[l.pos] == quote {
			l.emit(tokString, l.src[start:l.pos])
			l.pos++
			return nil
		}
		if l.src[l.pos] == '\n' {
			l.line++
		}
		l.pos++
	}
	return &SyntaxError{
		Message: "unterminated string literal",
		Line:    l.line,
		Snippet: l.currentLine(),
	}
}

func (l *lexer) lexNumber() {
	start := l.pos
	for l.pos < len(l.src) && (l.src[l.pos] >= '0' && l.src[l.pos] <= '9') {
		l.pos++
	}
	l.emit(tokNumber, l.src[start:l.pos])
}

func (l *lexer) lexIdent() {
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(rune(l.src[l.pos])) {
		l.pos++
	}
	l.emit(tokIdent, l.src[start:l.pos])
}

func (l *lexer) errUnexpected(ch string) error {
	return &SyntaxError{
		Message:        "unexpected character in expression",
		Line:           l.line,
		Snippet:        l.currentLine(),
		UnexpectedChar: ch,
	}
}

// currentLine returns the full source line containing the cursor.
func (l *lexer) currentLine() string {
	start := strings.LastIndexByte(l.src[:l.pos], '\n') + 1
	end := strings.IndexByte(l.src[l.pos:], '\n')
	if end == -1 {
		return l.src[start:]
	}
	return l.src[start : l.pos+end]
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
