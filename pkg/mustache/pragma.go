package mustache

// Pragma is a named handler that claims interpretation of token kinds while
// it is active in a render pass. A template activates a pragma with a
// {{%NAME key=value}} tag; the activation lasts until the end of the
// enclosing section or template.
//
// Handle is called for every token of a claimed kind. The pass argument is
// only valid for the duration of the call. Returning handled=false declines
// the token, passing it to the previously activated claimant and finally to
// the renderer's built-in interpretation.
type Pragma interface {
	Name() string
	HandlesTokenKind(kind TokenKind) bool
	Handle(pass *Pass, tok Token, opts Options) (out string, handled bool, err error)
}

// Options are the key=value pairs written in a pragma activation tag.
type Options map[string]string

// Get returns the option for key, or def when unset or empty.
func (o Options) Get(key, def string) string {
	if v, ok := o[key]; ok && v != "" {
		return v
	}
	return def
}

type activation struct {
	pragma  Pragma
	options Options
}
