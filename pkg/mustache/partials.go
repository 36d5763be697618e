package mustache

import (
	"reflect"
)

// partialTemplates extracts the string-valued entries of a partials
// argument. Nil yields no partials; maps with string keys and structs are
// accepted; anything else is ErrInvalidPartials.
func partialTemplates(partials any) (map[string]string, error) {
	switch p := partials.(type) {
	case nil:
		return nil, nil
	case map[string]string:
		out := make(map[string]string, len(p))
		for alias, template := range p {
			out[alias] = template
		}
		return out, nil
	case map[string]any:
		out := make(map[string]string, len(p))
		for alias, v := range p {
			if template, ok := v.(string); ok {
				out[alias] = template
			}
		}
		return out, nil
	}

	v := reflect.ValueOf(partials)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}

	out := make(map[string]string)
	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, ErrInvalidPartials
		}
		iter := v.MapRange()
		for iter.Next() {
			if template, ok := stringValue(iter.Value()); ok {
				out[iter.Key().String()] = template
			}
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			if template, ok := stringValue(v.Field(i)); ok {
				out[fieldName(field)] = template
			}
		}
	default:
		return nil, ErrInvalidPartials
	}
	return out, nil
}

func stringValue(v reflect.Value) (string, bool) {
	for v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	if v.Kind() != reflect.String {
		return "", false
	}
	return v.String(), true
}
