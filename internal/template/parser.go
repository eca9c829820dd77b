package template

import (
	"fmt"
	"strconv"
)

// Node is an element of the compiled template body.
type Node interface{ node() }

// TextNode is literal output.
type TextNode struct {
	Text string
}

// OutputNode substitutes an expression's value.
type OutputNode struct {
	Expr Expr
	Line int
}

// ForNode iterates an expression, binding one or more loop targets.
type ForNode struct {
	Targets []string
	Iter    Expr
	Body    []Node
	Line    int
}

// IfNode renders Body when the condition is truthy, Else otherwise.
type IfNode struct {
	Cond Expr
	Body []Node
	Else []Node
	Line int
}

func (*TextNode) node()   {}
func (*OutputNode) node() {}
func (*ForNode) node()    {}
func (*IfNode) node()     {}

// Expr is a variable dereference or literal inside a tag.
type Expr interface{ expr() }

// NameExpr is a bare variable reference.
type NameExpr struct {
	Name string
}

// AttrExpr is attribute access: base.name.
type AttrExpr struct {
	Base Expr
	Name string
}

// IndexExpr is subscript access: base[index].
type IndexExpr struct {
	Base  Expr
	Index Expr
}

// StringLit is a quoted string literal.
type StringLit struct {
	Value string
}

// IntLit is an integer literal.
type IntLit struct {
	Value int
}

func (*NameExpr) expr()  {}
func (*AttrExpr) expr()  {}
func (*IndexExpr) expr() {}
func (*StringLit) expr() {}
func (*IntLit) expr()    {}

type parser struct {
	tokens []token
	pos    int
}

func parse(tokens []token) ([]Node, error) {
	p := &parser{tokens: tokens}
	body, err := p.parseBody(nil)
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, p.errorf("unexpected %q outside any open block", p.peek().val)
	}
	return body, nil
}

func (p *parser) peek() token  { return p.tokens[p.pos] }
func (p *parser) next() token  { t := p.tokens[p.pos]; p.pos++; return t }
func (p *parser) backup()      { p.pos-- }

func (p *parser) errorf(format string, args ...any) error {
	t := p.peek()
	return &SyntaxError{Message: fmt.Sprintf(format, args...), Line: t.line}
}

// parseBody parses nodes until EOF or until a block tag whose keyword is in
// stop; the stop tag is left unconsumed except for its keyword.
func (p *parser) parseBody(stop []string) ([]Node, error) {
	var nodes []Node
	for {
		t := p.next()
		switch t.kind {
		case tokEOF:
			if len(stop) > 0 {
				p.backup()
				return nil, &SyntaxError{Message: "unexpected end of template, unclosed block", Line: t.line}
			}
			p.backup()
			return nodes, nil
		case tokText:
			nodes = append(nodes, &TextNode{Text: t.val})
		case tokVarBegin:
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if end := p.next(); end.kind != tokVarEnd {
				return nil, &SyntaxError{Message: "expected }} to close expression", Line: end.line}
			}
			nodes = append(nodes, &OutputNode{Expr: expr, Line: t.line})
		case tokBlockBegin:
			kw := p.next()
			if kw.kind != tokIdent {
				return nil, &SyntaxError{Message: "expected block keyword after {%", Line: kw.line}
			}
			for _, s := range stop {
				if kw.val == s {
					// Caller consumes the closing %}.
					return nodes, nil
				}
			}
			node, err := p.parseBlock(kw)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		default:
			return nil, &SyntaxError{Message: "unexpected token " + t.val, Line: t.line}
		}
	}
}

func (p *parser) parseBlock(kw token) (Node, error) {
	switch kw.val {
	case "for":
		return p.parseFor(kw.line)
	case "if":
		return p.parseIf(kw.line)
	default:
		return nil, &SyntaxError{Message: "unknown block tag " + kw.val, Line: kw.line}
	}
}

func (p *parser) parseFor(line int) (Node, error) {
	var targets []string
	for {
		t := p.next()
		if t.kind != tokIdent {
			return nil, &SyntaxError{Message: "expected loop variable name", Line: t.line}
		}
		targets = append(targets, t.val)
		if p.peek().kind == tokComma {
			p.next()
			continue
		}
		break
	}
	in := p.next()
	if in.kind != tokIdent || in.val != "in" {
		return nil, &SyntaxError{Message: "expected 'in' in for tag", Line: in.line}
	}
	iter, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if end := p.next(); end.kind != tokBlockEnd {
		return nil, &SyntaxError{Message: "expected %} to close for tag", Line: end.line}
	}
	body, err := p.parseBody([]string{"endfor"})
	if err != nil {
		return nil, err
	}
	if end := p.next(); end.kind != tokBlockEnd {
		return nil, &SyntaxError{Message: "expected %} after endfor", Line: end.line}
	}
	return &ForNode{Targets: targets, Iter: iter, Body: body, Line: line}, nil
}

func (p *parser) parseIf(line int) (Node, error) {
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if end := p.next(); end.kind != tokBlockEnd {
		return nil, &SyntaxError{Message: "expected %} to close if tag", Line: end.line}
	}
	body, err := p.parseBody([]string{"else", "endif"})
	if err != nil {
		return nil, err
	}
	// The stop keyword was consumed by parseBody; inspect it.
	stopKw := p.tokens[p.pos-1]
	if end := p.next(); end.kind != tokBlockEnd {
		return nil, &SyntaxError{Message: "expected %} after " + stopKw.val, Line: end.line}
	}
	var elseBody []Node
	if stopKw.val == "else" {
		elseBody, err = p.parseBody([]string{"endif"})
		if err != nil {
			return nil, err
		}
		if end := p.next(); end.kind != tokBlockEnd {
			return nil, &SyntaxError{Message: "expected %} after endif", Line: end.line}
		}
	}
	return &IfNode{Cond: cond, Body: body, Else: elseBody, Line: line}, nil
}

// parseExpr parses a dereference chain. Function calls are rejected
// outright: templates substitute variables, they do not execute code.
func (p *parser) parseExpr() (Expr, error) {
	t := p.next()
	var base Expr
	switch t.kind {
	case tokIdent:
		base = &NameExpr{Name: t.val}
	case tokString:
		base = &StringLit{Value: t.val}
	case tokNumber:
		n, _ := strconv.Atoi(t.val)
		base = &IntLit{Value: n}
	default:
		return nil, &SyntaxError{Message: "expected variable or literal", Line: t.line}
	}

	for {
		switch p.peek().kind {
		case tokDot:
			p.next()
			name := p.next()
			if name.kind != tokIdent {
				return nil, &SyntaxError{Message: "expected attribute name after '.'", Line: name.line}
			}
			base = &AttrExpr{Base: base, Name: name.val}
		case tokLBracket:
			p.next()
			index, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if end := p.next(); end.kind != tokRBracket {
				return nil, &SyntaxError{Message: "expected ] to close subscript", Line: end.line}
			}
			base = &IndexExpr{Base: base, Index: index}
		case tokLParen:
			return nil, &SyntaxError{
				Message: "function calls are not allowed in templates",
				Line:    p.peek().line,
			}
		default:
			return base, nil
		}
	}
}
