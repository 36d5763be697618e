package mustache

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultLexer_Compile(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		expected Tokens
	}{
		{
			name:     "plain text",
			text:     "no tags here",
			expected: Tokens{{Kind: TokenText, Value: "no tags here", Line: 1}},
		},
		{
			name: "variables",
			text: "{{ a }}{{{b}}}{{&c}}",
			expected: Tokens{
				{Kind: TokenVariable, Value: "a", Line: 1},
				{Kind: TokenVariableRaw, Value: "b", Line: 1},
				{Kind: TokenVariableRaw, Value: "c", Line: 1},
			},
		},
		{
			name: "nested sections",
			text: "{{#outer}}[{{^inner}}none{{/inner}}]{{/outer}}",
			expected: Tokens{
				{Kind: TokenSection, Value: "outer", Line: 1, Children: Tokens{
					{Kind: TokenText, Value: "[", Line: 1},
					{Kind: TokenInverted, Value: "inner", Line: 1, Children: Tokens{
						{Kind: TokenText, Value: "none", Line: 1},
					}},
					{Kind: TokenText, Value: "]", Line: 1},
				}},
			},
		},
		{
			name: "comment and partial",
			text: "{{! note }}{{> footer }}",
			expected: Tokens{
				{Kind: TokenComment, Value: "note", Line: 1},
				{Kind: TokenPartial, Value: "footer", Line: 1},
			},
		},
		{
			name: "pragma with options",
			text: "{{%IMPLICIT-ITERATOR iterator=item flag}}",
			expected: Tokens{
				{Kind: TokenPragma, Value: "IMPLICIT-ITERATOR", Line: 1, Options: map[string]string{"iterator": "item", "flag": ""}},
			},
		},
		{
			name: "line numbers",
			text: "a\nb\n{{x}}\n{{!multi\nline}}{{y}}",
			expected: Tokens{
				{Kind: TokenText, Value: "a\nb\n", Line: 1},
				{Kind: TokenVariable, Value: "x", Line: 3},
				{Kind: TokenText, Value: "\n", Line: 3},
				{Kind: TokenComment, Value: "multi\nline", Line: 4},
				{Kind: TokenVariable, Value: "y", Line: 5},
			},
		},
		{
			name:     "empty comment",
			text:     "{{!}}",
			expected: Tokens{{Kind: TokenComment, Value: "", Line: 1}},
		},
	}

	lexer := NewDefaultLexer()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tokens, err := lexer.Compile(tc.text, "")
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			if diff := cmp.Diff(tc.expected, tokens); diff != "" {
				t.Errorf("unexpected tokens (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDefaultLexer_CompileErrors(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		expected error
	}{
		{"unclosed tag", "Hello {{name", ErrUnbalancedTag},
		{"unclosed triple", "{{{name}}", ErrUnbalancedTag},
		{"empty tag", "{{ }}", ErrUnbalancedTag},
		{"empty section", "{{#}}{{/}}", ErrUnbalancedTag},
		{"unexpected close", "text{{/a}}", ErrUnbalancedTag},
		{"mismatched close", "{{#a}}{{#b}}{{/a}}{{/b}}", ErrUnbalancedTag},
		{"never closed", "{{#a}}body", ErrUnbalancedTag},
		{"lower case pragma", "{{%lower}}", ErrInvalidPragmaName},
		{"nameless pragma", "{{%}}", ErrInvalidPragmaName},
		{"punctuated pragma", "{{%BAD!}}", ErrInvalidPragmaName},
	}

	lexer := NewDefaultLexer()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tokens, err := lexer.Compile(tc.text, "broken")
			if !errors.Is(err, tc.expected) {
				t.Fatalf("expected %v, got %v", tc.expected, err)
			}
			if tokens != nil {
				t.Errorf("expected no tokens on failure, got %v", tokens)
			}
		})
	}
}
