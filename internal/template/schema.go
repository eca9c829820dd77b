package template

// Schema is a JSON Schema fragment describing the variables a template
// consumes. Leaves referenced without further dereference stay open (no
// type) so a declared schema can refine them later.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Description string             `json:"description,omitempty"`
	Examples    []any              `json:"examples,omitempty"`
}

func (s *Schema) property(name string) *Schema {
	if s.Properties == nil {
		s.Properties = map[string]*Schema{}
	}
	child, ok := s.Properties[name]
	if !ok {
		child = &Schema{}
		s.Properties[name] = child
	}
	s.Type = "object"
	return child
}

func (s *Schema) items() *Schema {
	if s.Items == nil {
		s.Items = &Schema{}
	}
	s.Type = "array"
	return s.Items
}

// InferSchema statically walks the template's syntax tree and returns a JSON
// Schema of every variable path it dereferences. No input payload is needed.
// Loop variables resolve against their iterable's items schema, including
// through nested loops and tuple-unpacked targets.
func (t *Template) InferSchema() *Schema {
	root := &Schema{Type: "object"}
	inferNodes(t.nodes, root, nil)
	return root
}

// scope maps a loop alias to the schema node its values come from.
type inferScope map[string]*Schema

func inferNodes(nodes []Node, root *Schema, scopes []inferScope) {
	for _, node := range nodes {
		switch n := node.(type) {
		case *OutputNode:
			inferExpr(n.Expr, root, scopes)
		case *IfNode:
			inferExpr(n.Cond, root, scopes)
			inferNodes(n.Body, root, scopes)
			inferNodes(n.Else, root, scopes)
		case *ForNode:
			iter := inferExpr(n.Iter, root, scopes)
			if iter == nil {
				continue
			}
			items := iter.items()
			local := inferScope{}
			for _, target := range n.Targets {
				// Tuple-unpacked targets all dereference into the same
				// element schema.
				local[target] = items
			}
			inferNodes(n.Body, root, append(scopes, local))
		}
	}
}

// inferExpr resolves the schema node an expression dereferences, creating
// intermediate object/array nodes along the path. Literals return nil.
func inferExpr(e Expr, root *Schema, scopes []inferScope) *Schema {
	switch expr := e.(type) {
	case *NameExpr:
		for i := len(scopes) - 1; i >= 0; i-- {
			if s, ok := scopes[i][expr.Name]; ok {
				return s
			}
		}
		return root.property(expr.Name)
	case *AttrExpr:
		base := inferExpr(expr.Base, root, scopes)
		if base == nil {
			return nil
		}
		return base.property(expr.Name)
	case *IndexExpr:
		base := inferExpr(expr.Base, root, scopes)
		if base == nil {
			return nil
		}
		switch idx := expr.Index.(type) {
		case *StringLit:
			// A string subscript is attribute access in disguise.
			return base.property(idx.Value)
		default:
			return base.items()
		}
	}
	return nil
}

// MergeSchema overlays inferred onto existing without destroying anything
// the existing schema already declares: known type, description, and example
// metadata are preserved, and paths only the inference found are added with
// an open schema. Neither input is mutated.
func MergeSchema(existing, inferred *Schema) *Schema {
	if existing == nil {
		return cloneSchema(inferred)
	}
	if inferred == nil {
		return cloneSchema(existing)
	}

	out := &Schema{
		Type:        existing.Type,
		Description: existing.Description,
		Examples:    existing.Examples,
	}
	if out.Type == "" {
		out.Type = inferred.Type
	}

	if existing.Properties != nil || inferred.Properties != nil {
		out.Properties = map[string]*Schema{}
		for name, sub := range existing.Properties {
			out.Properties[name] = MergeSchema(sub, inferred.Properties[name])
		}
		for name, sub := range inferred.Properties {
			if _, ok := out.Properties[name]; !ok {
				out.Properties[name] = cloneSchema(sub)
			}
		}
	}
	if existing.Items != nil || inferred.Items != nil {
		out.Items = MergeSchema(existing.Items, inferred.Items)
	}
	return out
}

func cloneSchema(s *Schema) *Schema {
	if s == nil {
		return nil
	}
	out := &Schema{
		Type:        s.Type,
		Description: s.Description,
		Examples:    s.Examples,
		Items:       cloneSchema(s.Items),
	}
	if s.Properties != nil {
		out.Properties = make(map[string]*Schema, len(s.Properties))
		for name, sub := range s.Properties {
			out.Properties[name] = cloneSchema(sub)
		}
	}
	return out
}
