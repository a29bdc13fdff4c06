// Package flatfile provides item readers and writers for delimited text files.
package flatfile

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// FieldSet is one parsed line, keyed by column name.
type FieldSet map[string]string

// FieldSetMapper maps a parsed line to an item.
type FieldSetMapper[T any] interface {
	MapFieldSet(fs FieldSet) (T, error)
}

// FieldSetMapperFunc adapts a function to FieldSetMapper.
type FieldSetMapperFunc[T any] func(fs FieldSet) (T, error)

// MapFieldSet calls f.
func (f FieldSetMapperFunc[T]) MapFieldSet(fs FieldSet) (T, error) {
	return f(fs)
}

// BeanFieldSetMapper binds columns to the struct fields of T by name. Names match
// case-insensitively, or through `mapstructure` tags; values are converted with weak typing
// so "1985" binds to an int field.
type BeanFieldSetMapper[T any] struct{}

// NewBeanFieldSetMapper creates a BeanFieldSetMapper.
func NewBeanFieldSetMapper[T any]() *BeanFieldSetMapper[T] {
	return &BeanFieldSetMapper[T]{}
}

func (m *BeanFieldSetMapper[T]) MapFieldSet(fs FieldSet) (T, error) {
	var item T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &item,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
	})
	if err != nil {
		return item, err
	}
	if err := decoder.Decode(map[string]string(fs)); err != nil {
		return item, fmt.Errorf("failed to bind field set to %T: %w", item, err)
	}
	return item, nil
}

// FieldExtractor converts an item to the ordered values of one output line.
type FieldExtractor[T any] interface {
	Extract(item T) ([]string, error)
}

// FieldExtractorFunc adapts a function to FieldExtractor.
type FieldExtractorFunc[T any] func(item T) ([]string, error)

// Extract calls f.
func (f FieldExtractorFunc[T]) Extract(item T) ([]string, error) {
	return f(item)
}

// BeanFieldExtractor reads the named struct fields of an item, in order. Names match the
// Go field names case-insensitively.
type BeanFieldExtractor[T any] struct {
	names []string
}

// NewBeanFieldExtractor creates an extractor for the given field names.
func NewBeanFieldExtractor[T any](names ...string) *BeanFieldExtractor[T] {
	return &BeanFieldExtractor[T]{names: names}
}

func (e *BeanFieldExtractor[T]) Extract(item T) ([]string, error) {
	v := reflect.ValueOf(item)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, fmt.Errorf("cannot extract fields from nil %T", item)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot extract fields from non-struct %T", item)
	}

	values := make([]string, len(e.names))
	for i, name := range e.names {
		f := v.FieldByNameFunc(func(field string) bool { return strings.EqualFold(field, name) })
		if !f.IsValid() || !f.CanInterface() {
			return nil, fmt.Errorf("exported field '%s' not found in %T", name, item)
		}
		values[i] = format(f)
	}
	return values, nil
}

func format(v reflect.Value) string {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	if t, ok := v.Interface().(time.Time); ok {
		return t.Format(time.RFC3339)
	}
	return fmt.Sprint(v.Interface())
}
