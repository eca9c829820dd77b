package template

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// Render substitutes every variable reference in the template against the
// input payload. Undefined references render as empty strings; rendering
// checks ctx at loop boundaries so a cancelled request stops promptly.
func (t *Template) Render(ctx context.Context, payload map[string]any) (string, error) {
	var sb strings.Builder
	scopes := []map[string]any{payload}
	if err := renderNodes(ctx, &sb, t.nodes, scopes); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func renderNodes(ctx context.Context, sb *strings.Builder, nodes []Node, scopes []map[string]any) error {
	for _, node := range nodes {
		switch n := node.(type) {
		case *TextNode:
			sb.WriteString(n.Text)
		case *OutputNode:
			sb.WriteString(stringify(resolve(n.Expr, scopes)))
		case *IfNode:
			if truthy(resolve(n.Cond, scopes)) {
				if err := renderNodes(ctx, sb, n.Body, scopes); err != nil {
					return err
				}
			} else if err := renderNodes(ctx, sb, n.Else, scopes); err != nil {
				return err
			}
		case *ForNode:
			if err := renderFor(ctx, sb, n, scopes); err != nil {
				return err
			}
		}
	}
	return nil
}

func renderFor(ctx context.Context, sb *strings.Builder, n *ForNode, scopes []map[string]any) error {
	iter := resolve(n.Iter, scopes)
	if iter == nil {
		return nil
	}
	rv := reflect.ValueOf(iter)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return &RenderError{Message: fmt.Sprintf("cannot iterate over %T", iter), Line: n.Line}
	}
	for i := 0; i < rv.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		local := map[string]any{}
		bindTargets(local, n.Targets, rv.Index(i).Interface())
		if err := renderNodes(ctx, sb, n.Body, append(scopes, local)); err != nil {
			return err
		}
	}
	return nil
}

// bindTargets assigns the loop element to the target names. Multiple targets
// unpack a per-element tuple (slice) positionally.
func bindTargets(local map[string]any, targets []string, element any) {
	if len(targets) == 1 {
		local[targets[0]] = element
		return
	}
	tuple, ok := element.([]any)
	if !ok {
		local[targets[0]] = element
		for _, t := range targets[1:] {
			local[t] = nil
		}
		return
	}
	for i, t := range targets {
		if i < len(tuple) {
			local[t] = tuple[i]
		} else {
			local[t] = nil
		}
	}
}

// resolve evaluates an expression against the scope stack. Loop scopes are
// searched innermost first. Missing names and attributes yield nil.
func resolve(e Expr, scopes []map[string]any) any {
	switch expr := e.(type) {
	case *StringLit:
		return expr.Value
	case *IntLit:
		return expr.Value
	case *NameExpr:
		for i := len(scopes) - 1; i >= 0; i-- {
			if v, ok := scopes[i][expr.Name]; ok {
				return v
			}
		}
		return nil
	case *AttrExpr:
		return lookup(resolve(expr.Base, scopes), expr.Name)
	case *IndexExpr:
		base := resolve(expr.Base, scopes)
		switch idx := resolve(expr.Index, scopes).(type) {
		case int:
			rv := reflect.ValueOf(base)
			if base == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
				return nil
			}
			if idx < 0 || idx >= rv.Len() {
				return nil
			}
			return rv.Index(idx).Interface()
		case string:
			return lookup(base, idx)
		default:
			return nil
		}
	}
	return nil
}

func lookup(base any, name string) any {
	m, ok := base.(map[string]any)
	if !ok {
		return nil
	}
	return m[name]
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case float64:
		return val != 0
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Map {
			return rv.Len() > 0
		}
		return true
	}
}
