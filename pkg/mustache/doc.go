/*
Package mustache coordinates a mustache-style template engine. A Mustache
value turns template references into tokens, caches them by name and by
partial alias, and drives a Renderer over them.

A template reference is either literal template text, recognised by the
presence of "{{", or the name of a template found through a Resolver.
Named templates are compiled once and served from the cache afterwards;
literal text is compiled on every call and never cached.

Partials passed to Render are always template text, even when they contain
no tag: {"header": "site/header"} renders the words site/header, it does not
alias the stored template of that name. The alias is cached like a name and
shadows any template stored under it.

Rendering can be extended with pragmas. A pragma registered on the renderer
is activated by a {{%NAME}} tag and may claim token kinds, taking over their
interpretation until the enclosing section or template ends. When several
active pragmas claim a kind, the most recently activated one is asked first.

The cache can be exported with GetAllTokens and loaded into another instance
with RestoreTokens; see package tokenstore for persistent snapshots.
*/
package mustache
