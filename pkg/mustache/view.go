package mustache

import (
	"fmt"
	"reflect"
	"strings"
)

// fieldName returns the name a struct field is looked up by: its mustache
// tag when present, otherwise the Go field name.
func fieldName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("mustache"); ok {
		if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
			return name
		}
	}
	return field.Name
}

// lookupKey resolves a single key against one context value. Maps with
// string keys, exported struct fields (honouring the mustache tag) and
// exported methods taking no arguments are supported.
func lookupKey(ctx any, key string) (any, bool) {
	if ctx == nil {
		return nil, false
	}
	if m, ok := ctx.(map[string]any); ok {
		v, found := m[key]
		return v, found
	}

	v := reflect.ValueOf(ctx)
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, false
	}
	if method := v.MethodByName(key); method.IsValid() {
		if method.Type().NumIn() == 0 && method.Type().NumOut() == 1 {
			return method.Call(nil)[0].Interface(), true
		}
	}

	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		mv := v.MapIndex(reflect.ValueOf(key).Convert(v.Type().Key()))
		if !mv.IsValid() {
			return nil, false
		}
		return mv.Interface(), true
	case reflect.Struct:
		return structField(v, key)
	}
	return nil, false
}

// structField finds key among the exported fields of v, then among the
// fields promoted from its embedded structs, shallowest first.
func structField(v reflect.Value, key string) (any, bool) {
	t := v.Type()
	var embedded []reflect.Value
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.IsExported() && fieldName(field) == key {
			return v.Field(i).Interface(), true
		}
		if !field.Anonymous {
			continue
		}
		fv := v.Field(i)
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		if fv.Kind() == reflect.Struct {
			embedded = append(embedded, fv)
		}
	}
	for _, ev := range embedded {
		if value, ok := structField(ev, key); ok {
			return value, true
		}
	}
	return nil, false
}

// lookup resolves a possibly dotted name against a context stack, searching
// the first segment from the top of the stack down. "." is the top itself.
func lookup(stack []any, name string) (any, bool) {
	if len(stack) == 0 {
		return nil, false
	}
	if name == "." {
		return stack[len(stack)-1], true
	}

	head, rest, dotted := strings.Cut(name, ".")
	var value any
	var found bool
	for i := len(stack) - 1; i >= 0; i-- {
		if value, found = lookupKey(stack[i], head); found {
			break
		}
	}
	if !found {
		return nil, false
	}
	if !dotted {
		return value, true
	}
	for _, key := range strings.Split(rest, ".") {
		if value, found = lookupKey(value, key); !found {
			return nil, false
		}
	}
	return value, true
}

// truthy reports whether a section for v renders. Nil, false, the empty
// string, nil pointers and empty lists are falsey.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Map, reflect.Interface, reflect.Func:
		return !rv.IsNil()
	}
	return true
}

// listItems returns the elements of v when it is a slice or array.
func listItems(v any) ([]any, bool) {
	if _, isBytes := v.([]byte); isBytes {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// FormatValue converts a view value into the text a variable tag outputs.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}
