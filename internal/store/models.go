package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"decision-matrix/backend/internal/matrix"
)

// DecisionRecord is the persisted form of a decision. Nested collections are
// stored as JSON text columns.
type DecisionRecord struct {
	ID               string    `gorm:"primaryKey;size:64"`
	Title            string    `gorm:"size:512"`
	TitleNormalized  string    `gorm:"size:512;index"`
	Description      string    `gorm:"type:text"`
	Category         string    `gorm:"size:128;index"`
	CriteriaJSON     string    `gorm:"type:text"`
	AlternativesJSON string    `gorm:"type:text"`
	ScoresJSON       string    `gorm:"type:text"`
	EvaluatorsJSON   string    `gorm:"type:text"`
	CreatedAt        time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime:false;index"`
}

// TableName keeps the table name stable regardless of the struct name.
func (DecisionRecord) TableName() string {
	return "decisions"
}

// SetCriteria persists the ordered criteria list as JSON.
func (r *DecisionRecord) SetCriteria(criteria []matrix.Criterion) error {
	return setJSON(&r.CriteriaJSON, criteria, "[]")
}

// Criteria decodes the stored criteria.
func (r *DecisionRecord) Criteria() ([]matrix.Criterion, error) {
	out := []matrix.Criterion{}
	return out, getJSON(r.CriteriaJSON, &out)
}

// SetAlternatives persists the ordered alternatives as JSON.
func (r *DecisionRecord) SetAlternatives(alts []matrix.Alternative) error {
	return setJSON(&r.AlternativesJSON, alts, "[]")
}

// Alternatives decodes the stored alternatives.
func (r *DecisionRecord) Alternatives() ([]matrix.Alternative, error) {
	out := []matrix.Alternative{}
	return out, getJSON(r.AlternativesJSON, &out)
}

// SetScores persists the sparse score matrix as JSON.
func (r *DecisionRecord) SetScores(scores matrix.ScoreMatrix) error {
	return setJSON(&r.ScoresJSON, scores, "{}")
}

// Scores decodes the stored score matrix.
func (r *DecisionRecord) Scores() (matrix.ScoreMatrix, error) {
	out := matrix.ScoreMatrix{}
	return out, getJSON(r.ScoresJSON, &out)
}

// SetEvaluators persists the evaluator list.
func (r *DecisionRecord) SetEvaluators(evaluators []matrix.Evaluator) error {
	return setJSON(&r.EvaluatorsJSON, evaluators, "[]")
}

// Evaluators decodes the evaluator list.
func (r *DecisionRecord) Evaluators() ([]matrix.Evaluator, error) {
	out := []matrix.Evaluator{}
	return out, getJSON(r.EvaluatorsJSON, &out)
}

func setJSON(dst *string, value any, empty string) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if string(payload) == "null" {
		payload = []byte(empty)
	}
	*dst = string(payload)
	return nil
}

func getJSON(src string, out any) error {
	if strings.TrimSpace(src) == "" {
		return nil
	}
	return json.Unmarshal([]byte(src), out)
}

func recordFromDecision(d matrix.Decision) (*DecisionRecord, error) {
	rec := &DecisionRecord{
		ID:              d.ID,
		Title:           d.Title,
		TitleNormalized: strings.ToLower(d.Title),
		Description:     d.Description,
		Category:        d.Category,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	if err := rec.SetCriteria(d.Criteria); err != nil {
		return nil, fmt.Errorf("encode criteria: %w", err)
	}
	if err := rec.SetAlternatives(d.Alternatives); err != nil {
		return nil, fmt.Errorf("encode alternatives: %w", err)
	}
	if err := rec.SetScores(d.Scores); err != nil {
		return nil, fmt.Errorf("encode scores: %w", err)
	}
	if err := rec.SetEvaluators(d.Evaluators); err != nil {
		return nil, fmt.Errorf("encode evaluators: %w", err)
	}
	return rec, nil
}

func (r *DecisionRecord) decision() (matrix.Decision, error) {
	d := matrix.Decision{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	var err error
	if d.Criteria, err = r.Criteria(); err != nil {
		return matrix.Decision{}, fmt.Errorf("decode criteria for %s: %w", r.ID, err)
	}
	if d.Alternatives, err = r.Alternatives(); err != nil {
		return matrix.Decision{}, fmt.Errorf("decode alternatives for %s: %w", r.ID, err)
	}
	if d.Scores, err = r.Scores(); err != nil {
		return matrix.Decision{}, fmt.Errorf("decode scores for %s: %w", r.ID, err)
	}
	if d.Evaluators, err = r.Evaluators(); err != nil {
		return matrix.Decision{}, fmt.Errorf("decode evaluators for %s: %w", r.ID, err)
	}
	d.Normalize()
	return d, nil
}

// RunRecord persists evaluation run progress across restarts.
type RunRecord struct {
	ID         string `gorm:"primaryKey;size:64"`
	DecisionID string `gorm:"size:64;index"`
	Status     string `gorm:"size:32;index"`
	Total      int
	Processed  int
	Failed     int
	ErrorsJSON string `gorm:"type:text"`
	StartedAt  time.Time
	FinishedAt *time.Time
	UpdatedAt  time.Time
}

// TableName keeps the run table name stable.
func (RunRecord) TableName() string {
	return "evaluation_runs"
}

func runRecordFrom(run EvaluationRun) (*RunRecord, error) {
	rec := &RunRecord{
		ID:         run.ID,
		DecisionID: run.DecisionID,
		Status:     run.Status,
		Total:      run.Total,
		Processed:  run.Processed,
		Failed:     run.Failed,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
	if err := setJSON(&rec.ErrorsJSON, run.Errors, "{}"); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *RunRecord) run() (EvaluationRun, error) {
	out := EvaluationRun{
		ID:         r.ID,
		DecisionID: r.DecisionID,
		Status:     r.Status,
		Total:      r.Total,
		Processed:  r.Processed,
		Failed:     r.Failed,
		StartedAt:  r.StartedAt.UTC(),
	}
	if r.FinishedAt != nil {
		finished := r.FinishedAt.UTC()
		out.FinishedAt = &finished
	}
	errs := map[string]string{}
	if err := getJSON(r.ErrorsJSON, &errs); err != nil {
		return EvaluationRun{}, err
	}
	if len(errs) > 0 {
		out.Errors = errs
	}
	return out, nil
}
