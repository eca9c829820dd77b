package template

import (
	"context"
	"errors"
	"testing"
)

func mustCompile(t *testing.T, src string) *Template {
	t.Helper()
	tmpl, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	return tmpl
}

func render(t *testing.T, src string, payload map[string]any) string {
	t.Helper()
	out, err := mustCompile(t, src).Render(context.Background(), payload)
	if err != nil {
		t.Fatalf("Render(%q): %v", src, err)
	}
	return out
}

func TestRenderPlainText(t *testing.T) {
	if got := render(t, "no variables here", nil); got != "no variables here" {
		t.Errorf("got %q", got)
	}
}

func TestRenderVariable(t *testing.T) {
	got := render(t, "Hello {{ name }}!", map[string]any{"name": "Ada"})
	if got != "Hello Ada!" {
		t.Errorf("got %q", got)
	}
}

func TestRenderNestedAttribute(t *testing.T) {
	payload := map[string]any{
		"user": map[string]any{"profile": map[string]any{"city": "Oslo"}},
	}
	if got := render(t, "{{ user.profile.city }}", payload); got != "Oslo" {
		t.Errorf("got %q", got)
	}
}

func TestRenderSubscript(t *testing.T) {
	payload := map[string]any{
		"items":  []any{"zero", "one", "two"},
		"record": map[string]any{"key": "value"},
	}
	if got := render(t, "{{ items[1] }}/{{ record[\"key\"] }}", payload); got != "one/value" {
		t.Errorf("got %q", got)
	}
}

func TestRenderForLoop(t *testing.T) {
	payload := map[string]any{
		"users": []any{
			map[string]any{"name": "Ada", "age": 36},
			map[string]any{"name": "Alan", "age": 41},
		},
	}
	got := render(t, "{% for u in users %}{{ u.name }}:{{ u.age }};{% endfor %}", payload)
	if got != "Ada:36;Alan:41;" {
		t.Errorf("got %q", got)
	}
}

func TestRenderForTupleUnpack(t *testing.T) {
	payload := map[string]any{
		"pairs": []any{
			[]any{"a", 1},
			[]any{"b", 2},
		},
	}
	got := render(t, "{% for k, v in pairs %}{{ k }}={{ v }} {% endfor %}", payload)
	if got != "a=1 b=2 " {
		t.Errorf("got %q", got)
	}
}

func TestRenderIfElse(t *testing.T) {
	src := "{% if admin %}yes{% else %}no{% endif %}"
	if got := render(t, src, map[string]any{"admin": true}); got != "yes" {
		t.Errorf("truthy branch got %q", got)
	}
	if got := render(t, src, map[string]any{"admin": false}); got != "no" {
		t.Errorf("falsy branch got %q", got)
	}
	if got := render(t, src, map[string]any{}); got != "no" {
		t.Errorf("missing variable got %q", got)
	}
}

func TestRenderCancelledContext(t *testing.T) {
	tmpl := mustCompile(t, "{% for x in xs %}{{ x }}{% endfor %}")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tmpl.Render(ctx, map[string]any{"xs": []any{1, 2, 3}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSyntaxErrorUnbalancedBraces(t *testing.T) {
	_, err := Compile("Hello {{ name }!")
	var serr *SyntaxError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want SyntaxError", err)
	}
	if serr.Line != 1 {
		t.Errorf("line = %d, want 1", serr.Line)
	}
	if serr.UnexpectedChar != "}" {
		t.Errorf("unexpected_char = %q, want %q", serr.UnexpectedChar, "}")
	}
}

func TestSyntaxErrorReportsLine(t *testing.T) {
	_, err := Compile("line one\nline two {{ broken ]")
	var serr *SyntaxError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want SyntaxError", err)
	}
	if serr.Line != 2 {
		t.Errorf("line = %d, want 2", serr.Line)
	}
}

func TestFunctionCallsRejected(t *testing.T) {
	_, err := Compile("{{ lookup(name) }}")
	var serr *SyntaxError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want SyntaxError", err)
	}
}

func TestUnterminatedBlockRejected(t *testing.T) {
	if _, err := Compile("{% for x in xs %}{{ x }}"); err == nil {
		t.Error("want error for missing endfor")
	}
	if _, err := Compile("{% if x %}body"); err == nil {
		t.Error("want error for missing endif")
	}
}

func TestInferSchemaSimpleVariable(t *testing.T) {
	schema := mustCompile(t, "Hello {{ name }}").InferSchema()
	if schema.Type != "object" {
		t.Fatalf("root type = %q", schema.Type)
	}
	if _, ok := schema.Properties["name"]; !ok {
		t.Error("missing property name")
	}
}

func TestInferSchemaLoopProperties(t *testing.T) {
	schema := mustCompile(t, "{% for u in users %}{{ u.name }} {{ u.age }}{% endfor %}").InferSchema()

	users, ok := schema.Properties["users"]
	if !ok {
		t.Fatal("missing property users")
	}
	if users.Type != "array" {
		t.Errorf("users type = %q, want array", users.Type)
	}
	if users.Items == nil {
		t.Fatal("users.items is nil")
	}
	if users.Items.Type != "object" {
		t.Errorf("users.items type = %q, want object", users.Items.Type)
	}
	for _, name := range []string{"name", "age"} {
		if _, ok := users.Items.Properties[name]; !ok {
			t.Errorf("missing users.items property %q", name)
		}
	}
}

func TestInferSchemaNestedLoops(t *testing.T) {
	src := "{% for team in teams %}{% for m in team.members %}{{ m.email }}{% endfor %}{% endfor %}"
	schema := mustCompile(t, src).InferSchema()

	teams := schema.Properties["teams"]
	if teams == nil || teams.Items == nil {
		t.Fatal("teams schema missing")
	}
	members := teams.Items.Properties["members"]
	if members == nil || members.Items == nil {
		t.Fatal("teams.items.members schema missing")
	}
	if _, ok := members.Items.Properties["email"]; !ok {
		t.Error("missing members.items property email")
	}
}

func TestInferSchemaSubscripts(t *testing.T) {
	schema := mustCompile(t, `{{ config["region"] }} {{ hosts[0] }}`).InferSchema()

	config := schema.Properties["config"]
	if config == nil || config.Type != "object" {
		t.Fatalf("config schema = %+v, want object", config)
	}
	if _, ok := config.Properties["region"]; !ok {
		t.Error("string subscript should become an object property")
	}

	hosts := schema.Properties["hosts"]
	if hosts == nil || hosts.Type != "array" {
		t.Fatalf("hosts schema = %+v, want array", hosts)
	}
}

func TestMergeSchemaKeepsDeclaredMetadata(t *testing.T) {
	declared := &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"name": {Type: "string", Description: "display name"},
		},
	}
	inferred := mustCompile(t, "{{ name }} {{ extra }}").InferSchema()

	merged := MergeSchema(declared, inferred)
	name := merged.Properties["name"]
	if name == nil || name.Description != "display name" {
		t.Errorf("declared metadata lost: %+v", name)
	}
	if _, ok := merged.Properties["extra"]; !ok {
		t.Error("inferred path not added")
	}
	// The declared schema itself stays untouched.
	if _, ok := declared.Properties["extra"]; ok {
		t.Error("merge mutated the declared schema")
	}
}

func TestEngineCachesCompiledTemplates(t *testing.T) {
	engine, err := NewEngine(4)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	first, err := engine.Compile("Hello {{ name }}")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	second, err := engine.Compile("Hello {{ name }}")
	if err != nil {
		t.Fatalf("Compile again: %v", err)
	}
	if first != second {
		t.Error("expected the cached template on the second compile")
	}
}

func TestEngineInferVariables(t *testing.T) {
	engine, err := NewEngine(0)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	schema, err := engine.InferVariables("{{ greeting }}", nil)
	if err != nil {
		t.Fatalf("InferVariables: %v", err)
	}
	if _, ok := schema.Properties["greeting"]; !ok {
		t.Error("missing property greeting")
	}
}
