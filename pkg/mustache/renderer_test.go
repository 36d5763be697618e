package mustache

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type person struct {
	First string `mustache:"first_name"`
	Last  string
	Age   int
	tags  []string
}

func (p person) FullName() string {
	return p.First + " " + p.Last
}

func (p *person) Initials() string {
	return p.First[:1] + p.Last[:1]
}

// Badge is embedded by member and guest to exercise promoted fields.
type Badge struct {
	ID    string
	Level int `mustache:"level"`
}

type member struct {
	Badge
	Name string
}

type guest struct {
	*Badge
	Name string
}

func renderLiteral(t *testing.T, r *DefaultRenderer, text string, view any) (string, error) {
	t.Helper()
	tokens, err := NewDefaultLexer().Compile(text, "")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return r.Render(context.Background(), tokens, view, nil)
}

func TestDefaultRenderer_Interpolation(t *testing.T) {
	ada := &person{First: "Ada", Last: "Lovelace", Age: 36, tags: []string{"math"}}
	testCases := []struct {
		name     string
		template string
		view     any
		expected string
	}{
		{"escaped", "{{v}}", map[string]any{"v": `<b>&"'`}, "&lt;b&gt;&amp;&#34;&#39;"},
		{"triple raw", "{{{v}}}", map[string]any{"v": "<b>"}, "<b>"},
		{"ampersand raw", "{{&v}}", map[string]any{"v": "<b>"}, "<b>"},
		{"missing", "[{{nope}}]", map[string]any{}, "[]"},
		{"numbers", "{{i}} {{f}} {{b}}", map[string]any{"i": 42, "f": 1.5, "b": true}, "42 1.5 true"},
		{"struct tag and field", "{{first_name}} {{Last}}", ada, "Ada Lovelace"},
		{"value method", "{{FullName}}", ada, "Ada Lovelace"},
		{"pointer method", "{{Initials}}", ada, "AL"},
		{"unexported field", "[{{tags}}]", ada, "[]"},
		{"dotted name", "{{user.address.city}}", map[string]any{"user": map[string]any{"address": map[string]string{"city": "Paris"}}}, "Paris"},
		{"dotted miss", "[{{user.zip}}]", map[string]any{"user": map[string]any{}}, "[]"},
		{"comment", "a{{! hidden }}b", nil, "ab"},
		{"nil pointer view", "[{{FullName}}|{{Initials}}|{{Last}}]", (*person)(nil), "[||]"},
		{"nil pointer field", "[{{user.FullName}}]", map[string]any{"user": (*person)(nil)}, "[]"},
		{"promoted field", "{{ID}}/{{level}}/{{Name}}", member{Badge: Badge{ID: "7", Level: 2}, Name: "m"}, "7/2/m"},
		{"promoted through pointer", "{{ID}}/{{Name}}", &guest{Badge: &Badge{ID: "9"}, Name: "g"}, "9/g"},
		{"nil embedded pointer", "[{{ID}}]", guest{Name: "g"}, "[]"},
		{"outer field shadows promoted", "{{Name}}", struct {
			member
			Name string
		}{member{Name: "inner"}, "outer"}, "outer"},
	}

	r := NewDefaultRenderer()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := renderLiteral(t, r, tc.template, tc.view)
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			if out != tc.expected {
				t.Errorf("expected '%s', got '%s'", tc.expected, out)
			}
		})
	}
}

func TestDefaultRenderer_Sections(t *testing.T) {
	testCases := []struct {
		name     string
		template string
		view     any
		expected string
	}{
		{"list of maps", "{{#items}}<{{name}}>{{/items}}", map[string]any{"items": []map[string]any{{"name": "a"}, {"name": "b"}}}, "<a><b>"},
		{"list of scalars", "{{#items}}{{.}},{{/items}}", map[string]any{"items": []int{1, 2, 3}}, "1,2,3,"},
		{"empty list", "{{#items}}x{{/items}}{{^items}}none{{/items}}", map[string]any{"items": []string{}}, "none"},
		{"false", "{{#on}}yes{{/on}}{{^on}}no{{/on}}", map[string]any{"on": false}, "no"},
		{"true", "{{#on}}yes{{/on}}{{^on}}no{{/on}}", map[string]any{"on": true}, "yes"},
		{"nested context", "{{#user}}{{name}} of {{team}}{{/user}}", map[string]any{"team": "core", "user": map[string]any{"name": "Ada"}}, "Ada of core"},
		{"nil pointer", "{{#p}}x{{/p}}", map[string]any{"p": (*person)(nil)}, ""},
		{"bytes are not a list", "{{#b}}[{{.}}]{{/b}}", map[string]any{"b": []byte("hi")}, "[hi]"},
	}

	r := NewDefaultRenderer()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := renderLiteral(t, r, tc.template, tc.view)
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			if out != tc.expected {
				t.Errorf("expected '%s', got '%s'", tc.expected, out)
			}
		})
	}
}

func TestDefaultRenderer_PragmaDispatch(t *testing.T) {
	variables := []TokenKind{TokenVariable, TokenVariableRaw}
	r := NewDefaultRenderer(
		&stubPragma{name: "A", kinds: variables, out: "A"},
		&stubPragma{name: "B", kinds: variables, out: "B"},
		&stubPragma{name: "QUIET", kinds: variables, decline: true},
		&stubPragma{name: "TEXT", kinds: []TokenKind{TokenText}, out: "T"},
	)

	testCases := []struct {
		name     string
		template string
		expected string
	}{
		{"no pragma", "{{x}}", "plain"},
		{"single", "{{%A}}{{x}}", "A:x"},
		{"last activated wins", "{{%A}}{{%B}}{{x}}", "B:x"},
		{"activation order", "{{%B}}{{%A}}{{x}}", "A:x"},
		{"options", "{{%A prefix=>}}{{x}}", ">A:x"},
		{"decline falls back", "{{%A}}{{%QUIET}}{{x}}", "A:x"},
		{"decline to built-in", "{{%QUIET}}{{x}}", "plain"},
		{"unclaimed kinds are built-in", "{{%A}}{{#s}}in{{/s}}", "in"},
		{"text handler", "{{%TEXT}}hi {{x}}", "T:hi plain"},
		{"unregistered is ignored", "{{%UNKNOWN}}{{x}}", "plain"},
		{"section scoped", "{{#s}}{{%B}}{{x}}{{/s}}|{{x}}", "B:x|plain"},
		{"section scoped fallback", "{{%A}}{{#s}}{{%B}}{{x}}{{/s}}|{{x}}", "B:x|A:x"},
		{"after activation only", "{{x}}{{%A}}{{x}}", "plainA:x"},
	}

	view := map[string]any{"x": "plain", "s": true}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := renderLiteral(t, r, tc.template, view)
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			if out != tc.expected {
				t.Errorf("expected '%s', got '%s'", tc.expected, out)
			}
		})
	}

	if got := strings.Join(r.Pragmas(), ","); got != "A,B,QUIET,TEXT" {
		t.Errorf("unexpected registered pragmas '%s'", got)
	}
}

type failingPragma struct{}

var errPragmaFailed = errors.New("pragma failed")

func (failingPragma) Name() string                    { return "FAIL" }
func (failingPragma) HandlesTokenKind(TokenKind) bool { return true }
func (failingPragma) Handle(*Pass, Token, Options) (string, bool, error) {
	return "", true, errPragmaFailed
}

func TestDefaultRenderer_PragmaError(t *testing.T) {
	r := NewDefaultRenderer(failingPragma{})
	out, err := renderLiteral(t, r, "ok {{%FAIL}}{{x}}", nil)
	if !errors.Is(err, errPragmaFailed) {
		t.Fatalf("expected the pragma's error, got %v", err)
	}
	if !strings.Contains(err.Error(), "FAIL") {
		t.Errorf("expected the pragma name in '%v'", err)
	}
	if out != "" {
		t.Errorf("expected no output on failure, got '%s'", out)
	}
}

func TestDefaultRenderer_PartialScopedPragma(t *testing.T) {
	m := New(nil, nil)
	variables := []TokenKind{TokenVariable}
	m.SetRenderer(NewDefaultRenderer(&stubPragma{name: "A", kinds: variables, out: "A"}))

	out, err := m.Render(context.Background(), "{{>inner}}|{{x}}", map[string]any{"x": "plain"}, map[string]string{
		"inner": "{{%A}}{{x}}",
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out != "A:x|plain" {
		t.Errorf("pragma activated in a partial must end with it, got '%s'", out)
	}
}

func TestDefaultRenderer_StandalonePartials(t *testing.T) {
	r := NewDefaultRenderer()
	lexer := NewDefaultLexer()
	row, err := lexer.Compile("<{{.}}>", "row")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	page, err := lexer.Compile("{{#items}}{{>row}}{{/items}}", "")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	out, err := r.Render(context.Background(), page, map[string]any{"items": []string{"a", "b"}}, map[string]Tokens{"row": row})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out != "<a><b>" {
		t.Errorf("expected '<a><b>', got '%s'", out)
	}

	_, err = r.Render(context.Background(), Tokens{{Kind: TokenPartial, Value: "missing"}}, nil, nil)
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound without a coordinator, got %v", err)
	}
}

func TestDefaultRenderer_ContextCancelled(t *testing.T) {
	r := NewDefaultRenderer()
	tokens, err := NewDefaultLexer().Compile("{{#items}}{{.}}{{/items}}", "")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := r.Render(ctx, tokens, map[string]any{"items": []int{1, 2}}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if out != "" {
		t.Errorf("expected no output, got '%s'", out)
	}
}
