package handler

import (
	"reflect"
	"strings"
)

// sanitize trims whitespace from the top-level string fields of a struct
// pointer. Embedded structs are visited too.
func sanitize(v any) {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return
	}
	trimStruct(val.Elem())
}

func trimStruct(val reflect.Value) {
	if val.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		if !field.CanSet() {
			continue
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(strings.TrimSpace(field.String()))
		case reflect.Struct:
			if val.Type().Field(i).Anonymous {
				trimStruct(field)
			}
		}
	}
}
