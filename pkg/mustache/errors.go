package mustache

import "errors"

var (
	// ErrInvalidPartials is returned by Render when the partials argument is
	// neither a map with string keys nor a struct.
	ErrInvalidPartials = errors.New("mustache: partials must be a map or struct")

	// ErrTemplateNotFound is returned when a named template cannot be resolved.
	ErrTemplateNotFound = errors.New("mustache: template not found")

	// ErrInvalidPragmaName is returned by the lexer for a malformed pragma tag.
	ErrInvalidPragmaName = errors.New("mustache: invalid pragma name")

	// ErrUnbalancedTag is returned by the lexer for unclosed tags and
	// mismatched section ends. The coordinator passes it through untouched.
	ErrUnbalancedTag = errors.New("mustache: unbalanced tag")

	// ErrInvalidTemplateReference is returned when a sub-view is built from
	// something other than a string.
	ErrInvalidTemplateReference = errors.New("mustache: template reference must be a string")

	// ErrInvalidSubViewArgument is returned when a sub-view is given a scalar view.
	ErrInvalidSubViewArgument = errors.New("mustache: view must be a map, struct, slice or array")

	// ErrTemplateCycle is returned when a template is re-entered while it is
	// still rendering, or when nesting exceeds Config.MaxDepth.
	ErrTemplateCycle = errors.New("mustache: template cycle")

	// ErrResolverNotConfigurable is returned by the path and suffix accessors
	// when the configured resolver does not support them.
	ErrResolverNotConfigurable = errors.New("mustache: resolver does not support search paths")
)
