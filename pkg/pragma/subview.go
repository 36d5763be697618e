package pragma

import (
	"reflect"

	"github.com/CTAG07/stache/pkg/mustache"
)

// SubView pairs a template reference with an optional view. Placed in a
// view, it is rendered in place of the variable that references it while
// the SUB-VIEWS pragma is active.
type SubView struct {
	template string
	view     any
}

// NewSubView validates and builds a sub-view. The template must be a string
// (a template name or literal template text) and the view, if not nil, must
// be a map, struct, slice, array or a pointer to one of them.
func NewSubView(template any, view any) (*SubView, error) {
	ref, ok := template.(string)
	if !ok {
		return nil, mustache.ErrInvalidTemplateReference
	}
	if view != nil && !structured(view) {
		return nil, mustache.ErrInvalidSubViewArgument
	}
	return &SubView{template: ref, view: view}, nil
}

// Template returns the template reference.
func (s *SubView) Template() string {
	return s.template
}

// View returns the view, or nil when the sub-view renders against the
// context it is found in.
func (s *SubView) View() any {
	return s.view
}

func structured(v any) bool {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array:
		return true
	}
	return false
}
