package pragma

import "github.com/CTAG07/stache/pkg/mustache"

// SubViewsName is the name the SubViews pragma is activated by.
const SubViewsName = "SUB-VIEWS"

// SubViews renders sub-views referenced by variable tags. Variables whose
// value is not a SubView or *SubView are left to the next claimant.
type SubViews struct{}

// NewSubViews returns the SUB-VIEWS pragma.
func NewSubViews() *SubViews {
	return &SubViews{}
}

func (*SubViews) Name() string {
	return SubViewsName
}

func (*SubViews) HandlesTokenKind(kind mustache.TokenKind) bool {
	return kind == mustache.TokenVariable || kind == mustache.TokenVariableRaw
}

func (*SubViews) Handle(pass *mustache.Pass, tok mustache.Token, _ mustache.Options) (string, bool, error) {
	v, _ := pass.Lookup(tok.Value)
	var sv *SubView
	switch t := v.(type) {
	case *SubView:
		sv = t
	case SubView:
		sv = &t
	}
	if sv == nil {
		return "", false, nil
	}
	view := sv.View()
	if view == nil {
		view = pass.Current()
	}
	out, err := pass.Render(sv.Template(), view)
	if err != nil {
		return "", true, err
	}
	return out, true, nil
}
