// Package forms validates console form input before it is sent to the
// administration backend.
package forms

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jaqcquesndav/Wanzo-admin/internal/apiclient"
)

// emailPattern is the address shape accepted by the console.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	v.RegisterValidation("mailbox", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return v
}

// Errors maps field names to human-readable messages.
type Errors struct {
	Fields map[string][]string
}

func (e *Errors) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *Errors) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

func (e *Errors) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid form fields: " + strings.Join(names, ", ")
}

// APIError converts the form errors to the rejection shape produced by backend
// validation failures.
func (e *Errors) APIError() *apiclient.Error {
	return apiclient.NewValidationError(e.Fields)
}

// errorOrNil avoids returning a typed nil as error.
func (e *Errors) errorOrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

// fieldErrors runs the struct tags on v and indexes failures by field and tag.
func fieldErrors(v any) (map[string]string, error) {
	err := validate.Struct(v)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out, nil
}
