package pragma

import "github.com/CTAG07/stache/pkg/mustache"

// ImplicitIteratorName is the name the ImplicitIterator pragma is activated by.
const ImplicitIteratorName = "IMPLICIT-ITERATOR"

// ImplicitIterator makes the current context available under a name chosen
// with the iterator option, which is useful when iterating lists of scalars:
//
//	{{%IMPLICIT-ITERATOR iterator=item}}{{#items}}<li>{{item}}</li>{{/items}}
//
// Without the option the name is ".".
type ImplicitIterator struct{}

// NewImplicitIterator returns the IMPLICIT-ITERATOR pragma.
func NewImplicitIterator() *ImplicitIterator {
	return &ImplicitIterator{}
}

func (*ImplicitIterator) Name() string {
	return ImplicitIteratorName
}

func (*ImplicitIterator) HandlesTokenKind(kind mustache.TokenKind) bool {
	return kind == mustache.TokenVariable || kind == mustache.TokenVariableRaw
}

func (*ImplicitIterator) Handle(pass *mustache.Pass, tok mustache.Token, opts mustache.Options) (string, bool, error) {
	if tok.Value != opts.Get("iterator", ".") {
		return "", false, nil
	}
	out := mustache.FormatValue(pass.Current())
	if tok.Kind == mustache.TokenVariable {
		out = pass.Escape(out)
	}
	return out, true, nil
}
