package mustache

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	closeTag    = "}}"
	closeTriple = "}}}"
)

// pragmaNamePattern is the accepted form of a pragma name, e.g. SUB-VIEWS.
var pragmaNamePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]*$`)

// DefaultLexer compiles the mustache tag set: variables, raw variables,
// sections, inverted sections, comments, partials and pragmas.
type DefaultLexer struct {
	manager *Mustache
}

// NewDefaultLexer returns a lexer that is not yet bound to a coordinator.
func NewDefaultLexer() *DefaultLexer {
	return &DefaultLexer{}
}

// SetManager binds the lexer to the coordinator that owns it.
func (l *DefaultLexer) SetManager(m *Mustache) {
	l.manager = m
}

type sectionFrame struct {
	token  Token
	tokens Tokens
}

// Compile turns text into tokens. Unclosed tags and mismatched section ends
// fail with ErrUnbalancedTag, malformed pragma tags with ErrInvalidPragmaName.
func (l *DefaultLexer) Compile(text, name string) (Tokens, error) {
	stack := []*sectionFrame{{}}
	line := 1
	pos := 0

	emit := func(tok Token) {
		top := stack[len(stack)-1]
		top.tokens = append(top.tokens, tok)
	}

	for pos < len(text) {
		start := strings.Index(text[pos:], openTag)
		if start < 0 {
			emit(Token{Kind: TokenText, Value: text[pos:], Line: line})
			break
		}
		if start > 0 {
			chunk := text[pos : pos+start]
			emit(Token{Kind: TokenText, Value: chunk, Line: line})
			line += strings.Count(chunk, "\n")
		}
		pos += start + len(openTag)

		closer := closeTag
		triple := strings.HasPrefix(text[pos:], "{")
		if triple {
			closer = closeTriple
			pos++
		}
		end := strings.Index(text[pos:], closer)
		if end < 0 {
			return nil, l.fail(name, fmt.Errorf("%w: line %d: unclosed tag", ErrUnbalancedTag, line))
		}
		body := text[pos : pos+end]
		tagLine := line
		line += strings.Count(body, "\n")
		pos += end + len(closer)

		if triple {
			key := strings.TrimSpace(body)
			if key == "" {
				return nil, l.fail(name, fmt.Errorf("%w: line %d: empty tag", ErrUnbalancedTag, tagLine))
			}
			emit(Token{Kind: TokenVariableRaw, Value: key, Line: tagLine})
			continue
		}

		sigil, key := splitTag(body)
		if key == "" && sigil != '!' && sigil != '%' {
			return nil, l.fail(name, fmt.Errorf("%w: line %d: empty tag", ErrUnbalancedTag, tagLine))
		}

		switch sigil {
		case '#', '^':
			kind := TokenSection
			if sigil == '^' {
				kind = TokenInverted
			}
			stack = append(stack, &sectionFrame{token: Token{Kind: kind, Value: key, Line: tagLine}})
		case '/':
			if len(stack) == 1 {
				return nil, l.fail(name, fmt.Errorf("%w: line %d: unexpected close of %q", ErrUnbalancedTag, tagLine, key))
			}
			top := stack[len(stack)-1]
			if top.token.Value != key {
				return nil, l.fail(name, fmt.Errorf("%w: line %d: %q closed by %q", ErrUnbalancedTag, tagLine, top.token.Value, key))
			}
			stack = stack[:len(stack)-1]
			top.token.Children = top.tokens
			emit(top.token)
		case '!':
			emit(Token{Kind: TokenComment, Value: key, Line: tagLine})
		case '>':
			emit(Token{Kind: TokenPartial, Value: key, Line: tagLine})
		case '&':
			emit(Token{Kind: TokenVariableRaw, Value: key, Line: tagLine})
		case '%':
			tok, err := parsePragma(key, tagLine)
			if err != nil {
				return nil, l.fail(name, err)
			}
			emit(tok)
		default:
			emit(Token{Kind: TokenVariable, Value: key, Line: tagLine})
		}
	}

	if len(stack) > 1 {
		open := stack[len(stack)-1].token
		return nil, l.fail(name, fmt.Errorf("%w: line %d: section %q is never closed", ErrUnbalancedTag, open.Line, open.Value))
	}

	tokens := stack[0].tokens
	if l.manager != nil {
		l.manager.Logger().Debug("Compiled template", "name", name, "tokens", len(tokens))
	}
	return tokens, nil
}

func (l *DefaultLexer) fail(name string, err error) error {
	if l.manager != nil {
		l.manager.Logger().Debug("Template failed to compile", "name", name, "error", err)
	}
	return err
}

// splitTag separates the sigil of a tag body from its trimmed key. A plain
// variable has a zero sigil.
func splitTag(body string) (byte, string) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return 0, ""
	}
	switch trimmed[0] {
	case '#', '^', '/', '!', '>', '&', '%':
		return trimmed[0], strings.TrimSpace(trimmed[1:])
	}
	return 0, trimmed
}

// parsePragma parses "NAME key=value ..." from a pragma tag.
func parsePragma(body string, line int) (Token, error) {
	fields := strings.Fields(body)
	if len(fields) == 0 || !pragmaNamePattern.MatchString(fields[0]) {
		return Token{}, fmt.Errorf("%w: line %d: %q", ErrInvalidPragmaName, line, body)
	}
	tok := Token{Kind: TokenPragma, Value: fields[0], Line: line}
	if len(fields) > 1 {
		tok.Options = make(map[string]string, len(fields)-1)
		for _, opt := range fields[1:] {
			k, v, _ := strings.Cut(opt, "=")
			tok.Options[k] = v
		}
	}
	return tok, nil
}
