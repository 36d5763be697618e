package mustache

import "fmt"

// TokenKind identifies what a Token represents. Pragmas claim tokens by kind.
type TokenKind int

const (
	TokenText TokenKind = iota
	TokenVariable
	TokenVariableRaw
	TokenSection
	TokenInverted
	TokenComment
	TokenPartial
	TokenPragma
)

var tokenKindNames = [...]string{
	TokenText:        "text",
	TokenVariable:    "variable",
	TokenVariableRaw: "variable_raw",
	TokenSection:     "section",
	TokenInverted:    "inverted",
	TokenComment:     "comment",
	TokenPartial:     "partial",
	TokenPragma:      "pragma",
}

func (k TokenKind) String() string {
	if k >= 0 && int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is a single unit of compiled template. For text tokens Value holds
// the literal text; for every other kind it holds the tag name. Sections and
// inverted sections carry their body in Children. Pragma tokens carry the
// options written in the tag.
type Token struct {
	Kind     TokenKind         `json:"kind"`
	Value    string            `json:"value,omitempty"`
	Children Tokens            `json:"children,omitempty"`
	Options  map[string]string `json:"options,omitempty"`
	Line     int               `json:"line,omitempty"`
}

// Tokens is an ordered, compiled template.
type Tokens []Token

// Snapshot maps template names and partial aliases to their compiled tokens.
// It is the exchange format of GetAllTokens and RestoreTokens.
type Snapshot map[string]Tokens

// Clone returns a copy of the snapshot map. Token slices are shared; tokens
// are never mutated once compiled.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for name, tokens := range s {
		out[name] = tokens
	}
	return out
}
