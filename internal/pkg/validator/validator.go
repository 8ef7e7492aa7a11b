package validator

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate struct fields. Keys are the struct namespace (e.g. Config.HTTP.Port)
// so nested config errors stay readable.
func Validate(v interface{}) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return map[string]string{"": err.Error()}
	}

	result := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		result[fe.Namespace()] = fe.Tag()
	}
	return result
}

// Struct is Validate folded into a single error.
func Struct(v interface{}) error {
	fields := Validate(v)
	if len(fields) == 0 {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s failed %q", k, fields[k]))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(parts, ", "))
}
