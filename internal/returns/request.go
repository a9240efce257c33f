package returns

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Request is an analysis window over a set of entities.
type Request struct {
	EntityKeys []string  `validate:"required,min=1,dive,required"`
	Start      time.Time `validate:"required"`
	End        time.Time `validate:"required,gtefield=Start"`
	Benchmark  string    // Empty means the engine's default rate
}

// ValidationError reports an invalid Request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Problems, "; ")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the request fields.
func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Problems: []string{err.Error()}}
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describe(fe))
	}
	return &ValidationError{Problems: problems}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Field() == "EntityKeys" {
			return "at least one entity is required"
		}
		return fmt.Sprintf("%s is required", fieldLabel(fe))
	case "min":
		return "at least one entity is required"
	case "gtefield":
		return "end must not be before start"
	default:
		return fmt.Sprintf("%s failed %s", fieldLabel(fe), fe.Tag())
	}
}

func fieldLabel(fe validator.FieldError) string {
	switch fe.StructField() {
	case "Start":
		return "start"
	case "End":
		return "end"
	default:
		return fe.Field()
	}
}

// keys returns the request's entity keys without duplicates, in request order.
func (r Request) keys() []string {
	seen := make(map[string]bool, len(r.EntityKeys))
	out := make([]string, 0, len(r.EntityKeys))
	for _, k := range r.EntityKeys {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
