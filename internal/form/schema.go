// Package form implements per-screen form state and the declarative
// validation schemas used by the login, signup, forgot-password and profile
// screens.
package form

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Field names a form input.
type Field string

const (
	FieldEmail           Field = "email"
	FieldPassword        Field = "password"
	FieldConfirmPassword Field = "confirmPassword"
	FieldDisplayName     Field = "displayName"
)

// ErrorKind classifies a validation failure.
type ErrorKind string

const (
	KindRequired  ErrorKind = "required"
	KindFormat    ErrorKind = "format"
	KindMinLength ErrorKind = "min-length"
	KindMismatch  ErrorKind = "mismatch"
	KindInvalid   ErrorKind = "invalid"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// FieldError is a single field's validation failure.
type FieldError struct {
	Field Field
	Kind  ErrorKind
	// Param is the rule parameter, e.g. "6" for a min-length failure.
	Param string
}

func (e FieldError) Error() string {
	if e.Param != "" {
		return string(e.Field) + ": " + string(e.Kind) + " (" + e.Param + ")"
	}
	return string(e.Field) + ": " + string(e.Kind)
}

// Values holds raw field input.
type Values map[Field]string

type rule struct {
	tag string
	// equalTo makes the field's value compare against another field.
	equalTo Field
}

// Schema is an ordered set of field rules.
type Schema struct {
	name   string
	fields []Field
	rules  map[Field]rule
}

var validate = validator.New()

func newSchema(name string) *Schema {
	return &Schema{name: name, rules: make(map[Field]rule)}
}

func (s *Schema) add(f Field, r rule) *Schema {
	s.fields = append(s.fields, f)
	s.rules[f] = r
	return s
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Fields returns the schema's fields in display order.
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Has reports whether f belongs to the schema.
func (s *Schema) Has(f Field) bool {
	_, ok := s.rules[f]
	return ok
}

// LoginSchema validates the login form.
func LoginSchema() *Schema {
	return newSchema("login").
		add(FieldEmail, rule{tag: "required,email"}).
		add(FieldPassword, rule{tag: "required,min=6"})
}

// SignupSchema validates the signup form.
func SignupSchema() *Schema {
	return newSchema("signup").
		add(FieldEmail, rule{tag: "required,email"}).
		add(FieldPassword, rule{tag: "required,min=6"}).
		add(FieldConfirmPassword, rule{tag: "required,eqfield", equalTo: FieldPassword})
}

// ForgotPasswordSchema validates the password reset form.
func ForgotPasswordSchema() *Schema {
	return newSchema("forgotpassword").
		add(FieldEmail, rule{tag: "required,email"})
}

// DisplayNameSchema validates the profile display name editor.
func DisplayNameSchema() *Schema {
	return newSchema("displayname").
		add(FieldDisplayName, rule{tag: "required"})
}

// ValidateField checks one field against the current values. It returns nil
// when the field is valid or unknown to the schema.
func (s *Schema) ValidateField(values Values, f Field) *FieldError {
	r, ok := s.rules[f]
	if !ok {
		return nil
	}

	value := values[f]
	if f == FieldDisplayName {
		value = strings.TrimSpace(value)
	}

	var err error
	if r.equalTo != "" {
		err = validate.VarWithValue(value, values[r.equalTo], r.tag)
	} else {
		err = validate.Var(value, r.tag)
	}
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &FieldError{Field: f, Kind: KindInvalid}
	}
	return &FieldError{Field: f, Kind: kindForTag(verrs[0].Tag()), Param: verrs[0].Param()}
}

// Validate checks every field and returns the failures keyed by field.
func (s *Schema) Validate(values Values) map[Field]FieldError {
	out := make(map[Field]FieldError)
	for _, f := range s.fields {
		if fe := s.ValidateField(values, f); fe != nil {
			out[f] = *fe
		}
	}
	return out
}

func kindForTag(tag string) ErrorKind {
	switch tag {
	case "required":
		return KindRequired
	case "email":
		return KindFormat
	case "min":
		return KindMinLength
	case "eqfield":
		return KindMismatch
	default:
		return KindInvalid
	}
}
