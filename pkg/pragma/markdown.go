package pragma

import (
	"strings"

	"github.com/CTAG07/stache/pkg/mustache"
	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday"
)

// MarkdownName is the name the Markdown pragma is activated by.
const MarkdownName = "MARKDOWN"

// MarkdownText marks a view value as markdown source.
type MarkdownText string

const markdownExtensions = blackfriday.EXTENSION_NO_INTRA_EMPHASIS |
	blackfriday.EXTENSION_TABLES |
	blackfriday.EXTENSION_AUTOLINK |
	blackfriday.EXTENSION_FENCED_CODE |
	blackfriday.EXTENSION_STRIKETHROUGH

// Markdown renders MarkdownText values to HTML and sanitises the result.
// Plain strings are rendered too when their tag name is listed in the
// fields option, e.g. {{%MARKDOWN fields=body,summary}}, which is how views
// decoded from JSON or YAML opt in. Other values are left to the next
// claimant.
type Markdown struct {
	policy *bluemonday.Policy
}

// NewMarkdown returns the MARKDOWN pragma using the UGC sanitising policy.
func NewMarkdown() *Markdown {
	return &Markdown{policy: bluemonday.UGCPolicy()}
}

func (*Markdown) Name() string {
	return MarkdownName
}

func (*Markdown) HandlesTokenKind(kind mustache.TokenKind) bool {
	return kind == mustache.TokenVariable || kind == mustache.TokenVariableRaw
}

func (md *Markdown) Handle(pass *mustache.Pass, tok mustache.Token, opts mustache.Options) (string, bool, error) {
	v, _ := pass.Lookup(tok.Value)
	var source string
	switch t := v.(type) {
	case MarkdownText:
		source = string(t)
	case string:
		if !listed(opts.Get("fields", ""), tok.Value) {
			return "", false, nil
		}
		source = t
	default:
		return "", false, nil
	}
	// The HTML renderer keeps per-document state, so each value gets its own.
	renderer := blackfriday.HtmlRenderer(blackfriday.HTML_SAFELINK|blackfriday.HTML_NOFOLLOW_LINKS, "", "")
	html := blackfriday.Markdown([]byte(source), renderer, markdownExtensions)
	return md.policy.Sanitize(string(html)), true, nil
}

func listed(list, name string) bool {
	for _, field := range strings.Split(list, ",") {
		if strings.TrimSpace(field) == name {
			return true
		}
	}
	return false
}
