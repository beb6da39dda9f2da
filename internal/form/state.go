package form

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrSubmitInFlight is returned when a submit is attempted while another
	// one from the same form has not finished.
	ErrSubmitInFlight = errors.New("form: submit already in flight")
	// ErrInvalid is returned by Begin under PolicyBlock when any field fails
	// validation.
	ErrInvalid = errors.New("form: validation failed")
	// ErrClosed is returned after the owning screen unmounted.
	ErrClosed = errors.New("form: closed")
)

// SubmitPolicy decides whether a form with validation errors may dispatch.
type SubmitPolicy string

const (
	PolicyBlock        SubmitPolicy = "block"
	PolicySubmitAnyway SubmitPolicy = "submit-anyway"
)

// ParsePolicy maps a configuration value to a SubmitPolicy. Empty means
// PolicyBlock.
func ParsePolicy(s string) (SubmitPolicy, error) {
	switch SubmitPolicy(s) {
	case "", PolicyBlock:
		return PolicyBlock, nil
	case PolicySubmitAnyway:
		return PolicySubmitAnyway, nil
	default:
		return "", fmt.Errorf("unknown submit policy %q", s)
	}
}

// State is the mutable state of one mounted form.
type State struct {
	schema *Schema
	policy SubmitPolicy

	mu         sync.Mutex
	values     Values
	errs       map[Field]FieldError
	touched    map[Field]bool
	submitting bool
	closed     bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewState creates form state for schema. Errors are computed immediately but
// stay hidden until a field is touched.
func NewState(schema *Schema, policy SubmitPolicy) *State {
	if policy == "" {
		policy = PolicyBlock
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &State{
		schema:  schema,
		policy:  policy,
		values:  make(Values),
		touched: make(map[Field]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.errs = schema.Validate(s.values)
	return s
}

// Schema returns the form's schema.
func (s *State) Schema() *Schema { return s.schema }

// Policy returns the submit policy.
func (s *State) Policy() SubmitPolicy { return s.policy }

// Set records a change to f and re-validates the whole form, since some rules
// depend on other fields.
func (s *State) Set(f Field, v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[f] = v
	s.errs = s.schema.Validate(s.values)
}

// Blur marks f as touched and re-validates.
func (s *State) Blur(f Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched[f] = true
	s.errs = s.schema.Validate(s.values)
}

// Value returns the current raw value of f.
func (s *State) Value(f Field) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[f]
}

// Values returns a copy of all values.
func (s *State) Values() Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(Values, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Touched reports whether f has been blurred or submitted.
func (s *State) Touched(f Field) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched[f]
}

// Error returns the validation error for f regardless of touched state.
func (s *State) Error(f Field) (FieldError, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fe, ok := s.errs[f]
	return fe, ok
}

// VisibleError returns the error for f only once the field is touched.
func (s *State) VisibleError(f Field) (FieldError, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.touched[f] {
		return FieldError{}, false
	}
	fe, ok := s.errs[f]
	return fe, ok
}

// Valid reports whether every field passes.
func (s *State) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs) == 0
}

// Submitting reports whether a submit is in flight.
func (s *State) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

// Closed reports whether Close has been called.
func (s *State) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Begin claims the submit slot. All fields become touched. The returned
// context is canceled by Close. Callers must call Finish once the action
// completes.
func (s *State) Begin() (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.submitting {
		return nil, ErrSubmitInFlight
	}
	for _, f := range s.schema.fields {
		s.touched[f] = true
	}
	s.errs = s.schema.Validate(s.values)
	if s.policy == PolicyBlock && len(s.errs) > 0 {
		return nil, ErrInvalid
	}
	s.submitting = true
	return s.ctx, nil
}

// Finish releases the submit slot. It reports false when the form was closed
// while the action ran, in which case the result must be dropped.
func (s *State) Finish() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
	return !s.closed
}

// Submit runs action synchronously inside the submit slot.
func (s *State) Submit(action func(ctx context.Context, values Values) error) error {
	ctx, err := s.Begin()
	if err != nil {
		return err
	}
	values := s.Values()
	actionErr := action(ctx, values)
	if !s.Finish() {
		return ErrClosed
	}
	return actionErr
}

// Close cancels any in-flight action. Safe to call more than once.
func (s *State) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}
