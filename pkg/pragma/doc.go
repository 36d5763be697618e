/*
Package pragma provides pragmas for the mustache renderer.

	SUB-VIEWS          renders *SubView values found in the view as nested templates
	IMPLICIT-ITERATOR  exposes the current list item under a configurable name
	MARKDOWN           renders MarkdownText values, and strings named in fields=, as sanitised HTML

Register them on a renderer and activate them from a template:

	r := mustache.NewDefaultRenderer(pragma.NewSubViews(), pragma.NewMarkdown())
	m.SetRenderer(r)
	out, err := m.Render(ctx, "{{%SUB-VIEWS}}<main>{{content}}</main>", view, nil)
*/
package pragma
