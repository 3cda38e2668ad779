package matrix

import (
	"time"
)

// ScaleMin and ScaleMax bound the discrete rating scale (1-5 stars).
const (
	ScaleMin = 1
	ScaleMax = 5
)

// Weight bounds used by clients that clamp user input. The model itself only
// requires a positive weight.
const (
	MinWeight     = 0.1
	MaxWeight     = 5.0
	DefaultWeight = 1.0
)

// DefaultEvaluatorID identifies the single evaluator every decision starts with.
const DefaultEvaluatorID = "default"

// Decision is the root aggregate of a decision matrix.
type Decision struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Category     string        `json:"category"`
	Criteria     []Criterion   `json:"criteria"`
	Alternatives []Alternative `json:"alternatives"`
	Scores       ScoreMatrix   `json:"scores"`
	Evaluators   []Evaluator   `json:"evaluators"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Criterion is a named, weighted axis of evaluation.
type Criterion struct {
	ID          string  `json:"id" validate:"required"`
	Name        string  `json:"name" validate:"required,max=200"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight" validate:"gt=0"`
}

// Alternative is a candidate option being scored. Product fields are only set
// when the alternative was sourced from the catalog.
type Alternative struct {
	ID          string            `json:"id" validate:"required"`
	Name        string            `json:"name" validate:"required,max=200"`
	Description string            `json:"description"`
	ProductID   string            `json:"product_id,omitempty"`
	Price       *float64          `json:"price,omitempty" validate:"omitempty,gte=0"`
	Rating      *float64          `json:"rating,omitempty" validate:"omitempty,gte=0"`
	ImageURL    string            `json:"image_url,omitempty" validate:"omitempty,url"`
	ExternalURL string            `json:"external_url,omitempty" validate:"omitempty,url"`
	Specs       map[string]string `json:"specs,omitempty"`
	Pros        []string          `json:"pros,omitempty"`
	Cons        []string          `json:"cons,omitempty"`
}

// Score rates one alternative against one criterion.
type Score struct {
	Value       int    `json:"value" validate:"min=1,max=5"`
	Explanation string `json:"explanation,omitempty"`
}

// Evaluator identifies who produced a set of scores.
type Evaluator struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ScoreMatrix maps alternative id -> criterion id -> score. A missing entry
// means the cell has not been scored yet.
type ScoreMatrix map[string]map[string]Score

// DefaultEvaluator returns the evaluator assigned to new decisions.
func DefaultEvaluator() Evaluator {
	return Evaluator{ID: DefaultEvaluatorID, Name: "You"}
}

// Get returns the score recorded for the cell, if any.
func (m ScoreMatrix) Get(alternativeID, criterionID string) (Score, bool) {
	row, ok := m[alternativeID]
	if !ok {
		return Score{}, false
	}
	score, ok := row[criterionID]
	return score, ok
}

// Set records a score, allocating the row on demand.
func (m ScoreMatrix) Set(alternativeID, criterionID string, score Score) {
	row, ok := m[alternativeID]
	if !ok {
		row = make(map[string]Score)
		m[alternativeID] = row
	}
	row[criterionID] = score
}

// Delete removes a single cell and drops the row once it is empty.
func (m ScoreMatrix) Delete(alternativeID, criterionID string) {
	row, ok := m[alternativeID]
	if !ok {
		return
	}
	delete(row, criterionID)
	if len(row) == 0 {
		delete(m, alternativeID)
	}
}

// Clone returns a deep copy of the matrix.
func (m ScoreMatrix) Clone() ScoreMatrix {
	out := make(ScoreMatrix, len(m))
	for altID, row := range m {
		copied := make(map[string]Score, len(row))
		for critID, score := range row {
			copied[critID] = score
		}
		out[altID] = copied
	}
	return out
}

// Count returns the number of scored cells.
func (m ScoreMatrix) Count() int {
	total := 0
	for _, row := range m {
		total += len(row)
	}
	return total
}
