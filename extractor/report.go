package extractor

import (
	"errors"
	"fmt"
)

// FieldError records a failure while extracting a single field.
type FieldError struct {
	Field string
	Err   error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e FieldError) Unwrap() error { return e.Err }

// Report collects per-field outcomes of one parse. A field that is absent
// from the page is not an error; it is simply left unknown.
type Report struct {
	Errors []FieldError
}

// OK reports whether every field parsed without error.
func (r Report) OK() bool { return len(r.Errors) == 0 }

// Err joins all field errors, or returns nil.
func (r Report) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, fe := range r.Errors {
		errs[i] = fe
	}
	return errors.Join(errs...)
}

// run executes fn for one field. Errors and panics are recorded against
// field and never propagate to the caller.
func (r *Report) run(field string, fn func() error) {
	defer func() {
		if p := recover(); p != nil {
			r.Errors = append(r.Errors, FieldError{Field: field, Err: fmt.Errorf("panic: %v", p)})
		}
	}()
	if err := fn(); err != nil {
		r.Errors = append(r.Errors, FieldError{Field: field, Err: err})
	}
}
