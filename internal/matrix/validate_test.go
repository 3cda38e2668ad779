package matrix

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCriterion(t *testing.T) {
	tests := []struct {
		name      string
		criterion Criterion
		field     string
	}{
		{"ok", Criterion{ID: "c", Name: "Price", Weight: 1}, ""},
		{"blank name", Criterion{ID: "c", Name: "   ", Weight: 1}, "name"},
		{"zero weight", Criterion{ID: "c", Name: "Price", Weight: 0}, "weight"},
		{"negative weight", Criterion{ID: "c", Name: "Price", Weight: -1}, "weight"},
		{"missing id", Criterion{Name: "Price", Weight: 1}, "id"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCriterion(tc.criterion)
			if tc.field == "" {
				require.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
}

func TestValidateAlternativeURL(t *testing.T) {
	err := ValidateAlternative(Alternative{ID: "a", Name: "Air", ImageURL: "not a url"})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "image_url", vErr.Field)

	require.NoError(t, ValidateAlternative(Alternative{ID: "a", Name: "Air", ImageURL: "https://example.com/a.png"}))
}

func TestValidateScoreRange(t *testing.T) {
	for v := 0; v <= 6; v++ {
		err := ValidateScore(Score{Value: v})
		if v >= ScaleMin && v <= ScaleMax {
			assert.NoError(t, err, "value %d", v)
		} else {
			assert.True(t, IsValidation(err), "value %d", v)
		}
	}
}

func TestValidateDecision(t *testing.T) {
	d := sampleDecision()
	require.NoError(t, ValidateDecision(d))

	dup := d.Clone()
	dup.Criteria = append(dup.Criteria, Criterion{ID: "c1", Name: "Again", Weight: 1})
	assert.True(t, IsValidation(ValidateDecision(dup)))

	dangling := d.Clone()
	dangling.Scores.Set("a1", "ghost", Score{Value: 3})
	assert.True(t, IsValidation(ValidateDecision(dangling)))
}

func TestIsValidationUnwraps(t *testing.T) {
	err := fmt.Errorf("add criterion: %w", &ValidationError{Field: "name", Message: "is required"})
	assert.True(t, IsValidation(err))
	assert.False(t, IsValidation(errors.New("boom")))
	assert.Equal(t, "validation: name is required", (&ValidationError{Field: "name", Message: "is required"}).Error())
}

func TestNewFromTemplate(t *testing.T) {
	d, err := NewFromTemplate("laptop", "")
	require.NoError(t, err)
	assert.Equal(t, "Laptop", d.Title)
	assert.Equal(t, "laptops", d.Category)
	require.Len(t, d.Criteria, 5)
	ids := map[string]bool{}
	for _, c := range d.Criteria {
		assert.NotEmpty(t, c.ID)
		assert.Greater(t, c.Weight, 0.0)
		ids[c.ID] = true
	}
	assert.Len(t, ids, 5)
	assert.Empty(t, d.Alternatives)
	assert.Len(t, d.Evaluators, 1)

	_, err = NewFromTemplate("nope", "x")
	assert.True(t, IsValidation(err))
}

func TestTemplatesReturnsCopies(t *testing.T) {
	list := Templates()
	require.NotEmpty(t, list)
	list[0].Criteria[0].Name = "mutated"
	again := Templates()
	assert.NotEqual(t, "mutated", again[0].Criteria[0].Name)
}
