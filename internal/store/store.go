package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"decision-matrix/backend/internal/matrix"
)

// ErrNotFound is returned when a decision or run id does not exist.
var ErrNotFound = errors.New("store: not found")

// ImportMode selects how ImportAll treats existing rows.
type ImportMode string

const (
	// ModeReplace clears the store before inserting.
	ModeReplace ImportMode = "replace"
	// ModeMerge updates decisions with a matching id and inserts the rest.
	ModeMerge ImportMode = "merge"
)

// ParseImportMode maps user input to an ImportMode.
func ParseImportMode(value string) (ImportMode, error) {
	switch ImportMode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeReplace:
		return ModeReplace, nil
	case ModeMerge, "":
		return ModeMerge, nil
	default:
		return "", &matrix.ValidationError{Field: "mode", Message: fmt.Sprintf("unknown import mode %q", value)}
	}
}

// Patch is a shallow update. Nil fields are left untouched.
type Patch struct {
	Title        *string
	Description  *string
	Category     *string
	Criteria     *[]matrix.Criterion
	Alternatives *[]matrix.Alternative
	Scores       *matrix.ScoreMatrix
	Evaluators   *[]matrix.Evaluator
}

// FullPatch replaces every mutable field with the values from d.
func FullPatch(d matrix.Decision) Patch {
	return Patch{
		Title:        &d.Title,
		Description:  &d.Description,
		Category:     &d.Category,
		Criteria:     &d.Criteria,
		Alternatives: &d.Alternatives,
		Scores:       &d.Scores,
		Evaluators:   &d.Evaluators,
	}
}

// Apply merges the patch into d and drops score entries left dangling.
func (p Patch) Apply(d *matrix.Decision) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.Category != nil {
		d.Category = *p.Category
	}
	if p.Criteria != nil {
		d.Criteria = *p.Criteria
	}
	if p.Alternatives != nil {
		d.Alternatives = *p.Alternatives
	}
	if p.Scores != nil {
		d.Scores = *p.Scores
	}
	if p.Evaluators != nil {
		d.Evaluators = *p.Evaluators
	}
	d.Normalize()
	d.PruneScores()
}

// Repository is the persistence boundary for decisions.
type Repository interface {
	Create(ctx context.Context, partial matrix.Decision) (matrix.Decision, error)
	Get(ctx context.Context, id string) (matrix.Decision, error)
	List(ctx context.Context) ([]matrix.Decision, error)
	Update(ctx context.Context, id string, patch Patch) (matrix.Decision, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, query string) ([]matrix.Decision, error)
	ExportAll(ctx context.Context) ([]matrix.Decision, error)
	ImportAll(ctx context.Context, decisions []matrix.Decision, mode ImportMode) error
}

// RunStatus values for EvaluationRun.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// EvaluationRun tracks one batch AI evaluation so clients can poll after the
// websocket stream is gone.
type EvaluationRun struct {
	ID         string            `json:"id"`
	DecisionID string            `json:"decision_id"`
	Status     string            `json:"status"`
	Total      int               `json:"total"`
	Processed  int               `json:"processed"`
	Failed     int               `json:"failed"`
	Errors     map[string]string `json:"errors,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// RunStore persists evaluation runs.
type RunStore interface {
	SaveRun(ctx context.Context, run EvaluationRun) error
	GetRun(ctx context.Context, id string) (EvaluationRun, error)
}

// Option configures a repository.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// prepareCreate fills defaults and stamps a fresh id and timestamps.
func prepareCreate(partial matrix.Decision, now time.Time) matrix.Decision {
	d := partial.Clone()
	d.ID = matrix.NewID()
	d.Normalize()
	d.PruneScores()
	d.CreatedAt = now
	d.UpdatedAt = now
	return d
}

func prepareImport(in matrix.Decision, now time.Time) (matrix.Decision, error) {
	d := in.Clone()
	if strings.TrimSpace(d.ID) == "" {
		return matrix.Decision{}, &matrix.ValidationError{Field: "id", Message: "is required for import"}
	}
	d.Normalize()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}
	return d, nil
}
