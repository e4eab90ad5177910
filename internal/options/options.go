// Package options decodes free-form option records from the build
// configuration into typed structs, rejecting keys the target does not know.
package options

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownOption indicates an option key the target struct does not declare
	ErrUnknownOption = errors.New("unknown option")
	// ErrInvalidOption indicates an option value of the wrong shape
	ErrInvalidOption = errors.New("invalid option value")
)

// Decode copies in into out, which must be a pointer to a struct with yaml tags.
// Keys are matched against the yaml tag names of out's fields.
func Decode(in map[string]any, out any) error {
	known := Keys(out)

	var unknown []string
	for key := range in {
		if !slices.Contains(known, key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: %s (known: %s)", ErrUnknownOption, strings.Join(unknown, ", "), strings.Join(known, ", "))
	}

	if len(in) == 0 {
		return nil
	}

	data, err := yaml.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	return nil
}

// Keys returns the sorted yaml key names declared by the struct behind out.
func Keys(out any) []string {
	t := reflect.TypeOf(out)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}

	keys := make([]string, 0, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = strings.ToLower(f.Name)
		}
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}
