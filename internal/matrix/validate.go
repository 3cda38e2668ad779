package matrix

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports a rejected mutation. Nothing is applied when it is
// returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Message)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateCriterion checks a criterion before it is added or updated.
func ValidateCriterion(c Criterion) error {
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	return translate(structValidator().Struct(c))
}

// ValidateAlternative checks an alternative before it is added or updated.
func ValidateAlternative(a Alternative) error {
	if strings.TrimSpace(a.Name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	return translate(structValidator().Struct(a))
}

// ValidateScore checks that a score sits on the discrete scale.
func ValidateScore(s Score) error {
	return translate(structValidator().Struct(s))
}

// ValidateDecision checks the whole aggregate, including id uniqueness and
// dangling score references.
func ValidateDecision(d Decision) error {
	if strings.TrimSpace(d.ID) == "" {
		return &ValidationError{Field: "id", Message: "is required"}
	}
	seen := make(map[string]struct{}, len(d.Criteria))
	for _, c := range d.Criteria {
		if err := ValidateCriterion(c); err != nil {
			return err
		}
		if _, dup := seen[c.ID]; dup {
			return &ValidationError{Field: "criteria", Message: fmt.Sprintf("duplicate id %q", c.ID)}
		}
		seen[c.ID] = struct{}{}
	}
	alts := make(map[string]struct{}, len(d.Alternatives))
	for _, a := range d.Alternatives {
		if err := ValidateAlternative(a); err != nil {
			return err
		}
		if _, dup := alts[a.ID]; dup {
			return &ValidationError{Field: "alternatives", Message: fmt.Sprintf("duplicate id %q", a.ID)}
		}
		alts[a.ID] = struct{}{}
	}
	for altID, row := range d.Scores {
		if _, ok := alts[altID]; !ok {
			return &ValidationError{Field: "scores", Message: fmt.Sprintf("unknown alternative %q", altID)}
		}
		for critID, score := range row {
			if _, ok := seen[critID]; !ok {
				return &ValidationError{Field: "scores", Message: fmt.Sprintf("unknown criterion %q", critID)}
			}
			if err := ValidateScore(score); err != nil {
				return err
			}
		}
	}
	return nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: field, Message: "is required"}
	case "gt":
		return &ValidationError{Field: field, Message: "must be greater than " + fe.Param()}
	case "gte", "min":
		return &ValidationError{Field: field, Message: "must be at least " + fe.Param()}
	case "max":
		return &ValidationError{Field: field, Message: "must be at most " + fe.Param()}
	case "url":
		return &ValidationError{Field: field, Message: "must be a valid URL"}
	default:
		return &ValidationError{Field: field, Message: "failed " + fe.Tag() + " check"}
	}
}
