package mustache

import (
	"context"
	"fmt"
	"html"
	"strings"
)

// Pass is the state of one renderer invocation: the context stack, the
// partials of the call and the pragmas activated so far. Pragmas receive it
// as their handle on the renderer driving them.
type Pass struct {
	ctx      context.Context
	renderer *DefaultRenderer
	stack    []any
	partials map[string]Tokens
	active   []activation
}

// Context returns the context of the render call.
func (p *Pass) Context() context.Context {
	return p.ctx
}

// Renderer returns the renderer driving this pass.
func (p *Pass) Renderer() Renderer {
	return p.renderer
}

// Current returns the innermost view context.
func (p *Pass) Current() any {
	if len(p.stack) == 0 {
		return nil
	}
	return p.stack[len(p.stack)-1]
}

// Lookup resolves a possibly dotted name against the context stack.
func (p *Pass) Lookup(name string) (any, bool) {
	return lookup(p.stack, name)
}

// Escape HTML-escapes s the way variable tags do.
func (p *Pass) Escape(s string) string {
	return html.EscapeString(s)
}

// Render renders a nested template reference against view through the same
// coordinator, lexer and renderer, inside the cycle guard of this call.
func (p *Pass) Render(template string, view any) (string, error) {
	if m := p.renderer.coordinator(); m != nil {
		return m.renderNested(p.ctx, template, view, nil)
	}
	if !isLiteral(template) {
		return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, template)
	}
	tokens, err := NewDefaultLexer().Compile(template, "")
	if err != nil {
		return "", err
	}
	ctx, leave, err := enterTemplate(p.ctx, "", defaultMaxDepth)
	if err != nil {
		return "", err
	}
	defer leave()
	return p.renderer.Render(ctx, tokens, view, nil)
}

// Active returns the names of the active pragmas, oldest first.
func (p *Pass) Active() []string {
	names := make([]string, len(p.active))
	for i, a := range p.active {
		names[i] = a.pragma.Name()
	}
	return names
}

func (p *Pass) push(v any) {
	p.stack = append(p.stack, v)
}

func (p *Pass) pop() {
	p.stack = p.stack[:len(p.stack)-1]
}

// renderTokens writes tokens to sb. Pragmas activated inside tokens are
// deactivated on return.
func (p *Pass) renderTokens(sb *strings.Builder, tokens Tokens) error {
	mark := len(p.active)
	defer func() {
		p.active = p.active[:mark]
	}()

	for _, tok := range tokens {
		if err := p.ctx.Err(); err != nil {
			return err
		}
		if tok.Kind == TokenPragma {
			p.activate(tok)
			continue
		}

		handled, err := p.dispatch(sb, tok)
		if err != nil {
			return err
		}
		if handled {
			continue
		}

		if err = p.interpret(sb, tok); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pass) activate(tok Token) {
	pragma, ok := p.renderer.pragma(tok.Value)
	if !ok {
		p.renderer.logger().Debug("Ignoring unregistered pragma", "pragma", tok.Value, "line", tok.Line)
		return
	}
	p.active = append(p.active, activation{pragma: pragma, options: Options(tok.Options)})
}

// dispatch offers tok to the active pragmas claiming its kind, most recently
// activated first.
func (p *Pass) dispatch(sb *strings.Builder, tok Token) (bool, error) {
	for i := len(p.active) - 1; i >= 0; i-- {
		a := p.active[i]
		if !a.pragma.HandlesTokenKind(tok.Kind) {
			continue
		}
		out, handled, err := a.pragma.Handle(p, tok, a.options)
		if err != nil {
			return true, fmt.Errorf("pragma %s: %w", a.pragma.Name(), err)
		}
		if handled {
			sb.WriteString(out)
			return true, nil
		}
	}
	return false, nil
}

// interpret applies the built-in meaning of tok.
func (p *Pass) interpret(sb *strings.Builder, tok Token) error {
	switch tok.Kind {
	case TokenText:
		sb.WriteString(tok.Value)
	case TokenVariable:
		v, _ := p.Lookup(tok.Value)
		sb.WriteString(p.Escape(FormatValue(v)))
	case TokenVariableRaw:
		v, _ := p.Lookup(tok.Value)
		sb.WriteString(FormatValue(v))
	case TokenSection:
		v, _ := p.Lookup(tok.Value)
		if !truthy(v) {
			return nil
		}
		if items, ok := listItems(v); ok {
			for _, item := range items {
				p.push(item)
				err := p.renderTokens(sb, tok.Children)
				p.pop()
				if err != nil {
					return err
				}
			}
			return nil
		}
		p.push(v)
		defer p.pop()
		return p.renderTokens(sb, tok.Children)
	case TokenInverted:
		v, _ := p.Lookup(tok.Value)
		if truthy(v) {
			return nil
		}
		return p.renderTokens(sb, tok.Children)
	case TokenPartial:
		return p.renderPartial(sb, tok.Value)
	}
	return nil
}

// renderPartial renders a partial in place, sharing the context stack. The
// partials of the current call take precedence over the coordinator cache.
func (p *Pass) renderPartial(sb *strings.Builder, name string) error {
	tokens, ok := p.partials[name]
	maxDepth := defaultMaxDepth
	m := p.renderer.coordinator()
	if m != nil {
		maxDepth = m.Config().MaxDepth
	}
	if !ok {
		if m == nil {
			return fmt.Errorf("%w: partial %q", ErrTemplateNotFound, name)
		}
		var err error
		if tokens, err = m.Tokenize(name); err != nil {
			return err
		}
	}

	ctx, leave, err := enterTemplate(p.ctx, name, maxDepth)
	if err != nil {
		return err
	}
	defer leave()

	outer := p.ctx
	p.ctx = ctx
	defer func() { p.ctx = outer }()
	return p.renderTokens(sb, tokens)
}
