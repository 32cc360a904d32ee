package core

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// Validate checks operation params against their validation rules.
// Returns a *ValidationError matching ErrInvalidParams when any field is rejected.
func Validate(operation string, params any) error {
	var fields []FieldError

	if err := validate.Struct(params); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%s: %w", operation, err)
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: trimNamespace(fe.Namespace()), Rule: fe.Tag()})
		}
	}

	// Identifiers are untyped, so nil checks happen here rather than through tags
	switch p := params.(type) {
	case GetOneParams:
		if p.ID == nil {
			fields = append(fields, FieldError{Field: "id", Rule: "required"})
		}
	case UpdateParams:
		if p.ID == nil {
			fields = append(fields, FieldError{Field: "id", Rule: "required"})
		}
	case GetManyReferenceParams:
		if p.ID == nil {
			fields = append(fields, FieldError{Field: "id", Rule: "required"})
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Operation: operation, Fields: fields}
	}
	return nil
}

// trimNamespace drops the leading struct name: "GetListParams.pagination.page" -> "pagination.page"
func trimNamespace(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
