package matrix

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

// NewID returns a fresh opaque identifier.
func NewID() string {
	return uuid.NewString()
}

// Normalize fills nil collections so a decision always serialises with empty
// arrays/objects and ensures the default evaluator is present.
func (d *Decision) Normalize() {
	if d.Criteria == nil {
		d.Criteria = []Criterion{}
	}
	if d.Alternatives == nil {
		d.Alternatives = []Alternative{}
	}
	if d.Scores == nil {
		d.Scores = ScoreMatrix{}
	}
	if len(d.Evaluators) == 0 {
		d.Evaluators = []Evaluator{DefaultEvaluator()}
	}
	d.Title = strings.TrimSpace(d.Title)
	d.Category = strings.TrimSpace(d.Category)
}

// Clone returns a deep copy so callers can mutate without touching the source.
func (d Decision) Clone() Decision {
	out := d
	out.Criteria = cloneSlice(d.Criteria)
	out.Evaluators = cloneSlice(d.Evaluators)
	if d.Alternatives != nil {
		out.Alternatives = make([]Alternative, len(d.Alternatives))
		for i, alt := range d.Alternatives {
			out.Alternatives[i] = alt.Clone()
		}
	}
	if d.Scores != nil {
		out.Scores = d.Scores.Clone()
	}
	return out
}

// Clone deep-copies the optional product fields.
func (a Alternative) Clone() Alternative {
	out := a
	if a.Price != nil {
		v := *a.Price
		out.Price = &v
	}
	if a.Rating != nil {
		v := *a.Rating
		out.Rating = &v
	}
	if a.Specs != nil {
		out.Specs = make(map[string]string, len(a.Specs))
		for k, v := range a.Specs {
			out.Specs[k] = v
		}
	}
	out.Pros = cloneSlice(a.Pros)
	out.Cons = cloneSlice(a.Cons)
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// CriterionIndex returns the position of the criterion or -1.
func (d Decision) CriterionIndex(id string) int {
	for i, c := range d.Criteria {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// AlternativeIndex returns the position of the alternative or -1.
func (d Decision) AlternativeIndex(id string) int {
	for i, a := range d.Alternatives {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// Criterion looks up a criterion by id.
func (d Decision) Criterion(id string) (Criterion, bool) {
	if idx := d.CriterionIndex(id); idx >= 0 {
		return d.Criteria[idx], true
	}
	return Criterion{}, false
}

// Alternative looks up an alternative by id.
func (d Decision) Alternative(id string) (Alternative, bool) {
	if idx := d.AlternativeIndex(id); idx >= 0 {
		return d.Alternatives[idx], true
	}
	return Alternative{}, false
}

// HasAnyScore reports whether at least one cell has been scored.
func (d Decision) HasAnyScore() bool {
	for _, row := range d.Scores {
		if len(row) > 0 {
			return true
		}
	}
	return false
}

// PruneScores drops score entries that reference criteria or alternatives no
// longer present on the decision.
func (d *Decision) PruneScores() {
	if d.Scores == nil {
		return
	}
	criteria := make(map[string]struct{}, len(d.Criteria))
	for _, c := range d.Criteria {
		criteria[c.ID] = struct{}{}
	}
	alternatives := make(map[string]struct{}, len(d.Alternatives))
	for _, a := range d.Alternatives {
		alternatives[a.ID] = struct{}{}
	}
	for altID, row := range d.Scores {
		if _, ok := alternatives[altID]; !ok {
			delete(d.Scores, altID)
			continue
		}
		for critID := range row {
			if _, ok := criteria[critID]; !ok {
				delete(row, critID)
			}
		}
		if len(row) == 0 {
			delete(d.Scores, altID)
		}
	}
}

// ScoredCells counts scored cells that reference live criteria/alternatives.
func (d Decision) ScoredCells() int {
	count := 0
	for _, alt := range d.Alternatives {
		for _, crit := range d.Criteria {
			if _, ok := d.Scores.Get(alt.ID, crit.ID); ok {
				count++
			}
		}
	}
	return count
}

// Completeness returns the fraction of the matrix that has been scored.
func (d Decision) Completeness() float64 {
	cells := len(d.Criteria) * len(d.Alternatives)
	if cells == 0 {
		return 0
	}
	return float64(d.ScoredCells()) / float64(cells)
}

// ClampWeight restricts a user-supplied weight to the range UIs offer.
func ClampWeight(weight float64) float64 {
	if math.IsNaN(weight) || weight <= 0 {
		return DefaultWeight
	}
	if weight < MinWeight {
		return MinWeight
	}
	if weight > MaxWeight {
		return MaxWeight
	}
	return weight
}

// ClampScore restricts a rating to the 1-5 scale.
func ClampScore(value int) int {
	if value < ScaleMin {
		return ScaleMin
	}
	if value > ScaleMax {
		return ScaleMax
	}
	return value
}
