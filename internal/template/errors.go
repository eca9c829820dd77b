package template

import "fmt"

// SyntaxError is a structured template parse error. It carries enough
// context (1-based line, the offending source line, the unexpected
// character) for a caller-facing diagnostic without re-parsing the source.
type SyntaxError struct {
	Message        string `json:"message"`
	Line           int    `json:"line"`
	Snippet        string `json:"snippet"`
	UnexpectedChar string `json:"unexpected_char,omitempty"`
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	if e.UnexpectedChar != "" {
		return fmt.Sprintf("template syntax error on line %d: %s (unexpected %q)", e.Line, e.Message, e.UnexpectedChar)
	}
	return fmt.Sprintf("template syntax error on line %d: %s", e.Line, e.Message)
}

// RenderError is a runtime rendering failure.
type RenderError struct {
	Message string
	Line    int
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("template render error on line %d: %s", e.Line, e.Message)
}
