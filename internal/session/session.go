package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"decision-matrix/backend/internal/ai"
	"decision-matrix/backend/internal/catalog"
	"decision-matrix/backend/internal/matrix"
	"decision-matrix/backend/internal/scoring"
	"decision-matrix/backend/internal/store"
)

var (
	ErrNoDecision          = errors.New("session: no decision open")
	ErrCriterionNotFound   = errors.New("session: criterion not found")
	ErrAlternativeNotFound = errors.New("session: alternative not found")
	ErrStepBlocked         = errors.New("session: step blocked")
	// ErrStaleSession means the open decision changed while an AI call was in
	// flight, so its result was discarded.
	ErrStaleSession = errors.New("session: decision changed during ai call")
)

// DefaultConcurrency bounds parallel provider calls in EvaluateAll.
const DefaultConcurrency = 3

// Summary is the list view of a stored decision.
type Summary struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Category          string    `json:"category"`
	CriteriaCount     int       `json:"criteria_count"`
	AlternativesCount int       `json:"alternatives_count"`
	Completeness      float64   `json:"completeness"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Summarize builds the list view of d.
func Summarize(d matrix.Decision) Summary {
	return Summary{
		ID:                d.ID,
		Title:             d.Title,
		Category:          d.Category,
		CriteriaCount:     len(d.Criteria),
		AlternativesCount: len(d.Alternatives),
		Completeness:      d.Completeness(),
		UpdatedAt:         d.UpdatedAt,
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithAssistant enables the AI workflows.
func WithAssistant(a *ai.Assistant) Option {
	return func(m *Manager) { m.assistant = a }
}

// WithCatalog enables product-backed alternatives.
func WithCatalog(c catalog.Catalog) Option {
	return func(m *Manager) { m.catalog = c }
}

// WithConcurrency sets how many alternatives EvaluateAll scores at once.
func WithConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// Manager owns the decision currently being edited. Every mutation runs on a
// clone that is persisted before it replaces the in-memory copy.
type Manager struct {
	mu          sync.Mutex
	repo        store.Repository
	assistant   *ai.Assistant
	catalog     catalog.Catalog
	concurrency int

	current   *matrix.Decision
	step      Step
	summaries []Summary
}

func NewManager(repo store.Repository, opts ...Option) *Manager {
	m := &Manager{
		repo:        repo,
		concurrency: DefaultConcurrency,
		step:        StepCriteria,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns a copy of the open decision.
func (m *Manager) Current() (matrix.Decision, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return matrix.Decision{}, false
	}
	return m.current.Clone(), true
}

// Summaries returns the cached decision list, most recently updated first.
func (m *Manager) Summaries() []Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Summary(nil), m.summaries...)
}

// RefreshSummaries reloads the decision list from the store.
func (m *Manager) RefreshSummaries(ctx context.Context) ([]Summary, error) {
	decisions, err := m.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	summaries := make([]Summary, 0, len(decisions))
	for _, d := range decisions {
		summaries = append(summaries, Summarize(d))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = summaries
	return append([]Summary(nil), summaries...), nil
}

// NewDecision stores a new decision and opens it.
func (m *Manager) NewDecision(ctx context.Context, partial matrix.Decision) (matrix.Decision, error) {
	partial.Title = strings.TrimSpace(partial.Title)
	if partial.Title == "" {
		return matrix.Decision{}, &matrix.ValidationError{Field: "title", Message: "is required"}
	}
	partial.Normalize()
	for i := range partial.Criteria {
		if partial.Criteria[i].ID == "" {
			partial.Criteria[i].ID = matrix.NewID()
		}
	}
	for i := range partial.Alternatives {
		if partial.Alternatives[i].ID == "" {
			partial.Alternatives[i].ID = matrix.NewID()
		}
	}
	// the store assigns the real id
	check := partial
	check.ID = "pending"
	if err := matrix.ValidateDecision(check); err != nil {
		return matrix.Decision{}, err
	}
	created, err := m.repo.Create(ctx, partial)
	if err != nil {
		return matrix.Decision{}, fmt.Errorf("create decision: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.open(created)
	return created.Clone(), nil
}

// NewFromTemplate creates and opens a decision seeded from a template.
func (m *Manager) NewFromTemplate(ctx context.Context, templateID, title string) (matrix.Decision, error) {
	seed, err := matrix.NewFromTemplate(templateID, title)
	if err != nil {
		return matrix.Decision{}, err
	}
	return m.NewDecision(ctx, seed)
}

// Open loads a stored decision and resumes at its natural step.
func (m *Manager) Open(ctx context.Context, id string) (matrix.Decision, error) {
	d, err := m.repo.Get(ctx, id)
	if err != nil {
		return matrix.Decision{}, fmt.Errorf("open decision %s: %w", id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open(d)
	return d.Clone(), nil
}

// open swaps in d; caller holds m.mu.
func (m *Manager) open(d matrix.Decision) {
	cp := d.Clone()
	m.current = &cp
	m.step = NaturalStep(cp)
	m.upsertSummary(cp)
	logrus.WithFields(logrus.Fields{"decision": cp.ID, "step": m.step}).Debug("decision opened")
}

// Close drops the open decision. In-flight AI results for it are discarded.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	m.step = StepCriteria
}

// DeleteDecision removes a stored decision, closing it if open.
func (m *Manager) DeleteDecision(ctx context.Context, id string) error {
	if err := m.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete decision %s: %w", id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.ID == id {
		m.current = nil
		m.step = StepCriteria
	}
	for i, s := range m.summaries {
		if s.ID == id {
			m.summaries = append(m.summaries[:i], m.summaries[i+1:]...)
			break
		}
	}
	return nil
}

// Details is a partial update of the descriptive fields.
type Details struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
}

// UpdateDetails edits title, description and category.
func (m *Manager) UpdateDetails(ctx context.Context, details Details) (matrix.Decision, error) {
	if details.Title != nil && strings.TrimSpace(*details.Title) == "" {
		return matrix.Decision{}, &matrix.ValidationError{Field: "title", Message: "is required"}
	}
	return m.mutate(ctx, func(d *matrix.Decision) error {
		if details.Title != nil {
			d.Title = strings.TrimSpace(*details.Title)
		}
		if details.Description != nil {
			d.Description = strings.TrimSpace(*details.Description)
		}
		if details.Category != nil {
			d.Category = strings.TrimSpace(*details.Category)
		}
		return nil
	})
}

// CalculateResults recomputes the ranking for the open decision.
func (m *Manager) CalculateResults() ([]scoring.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, ErrNoDecision
	}
	return scoring.ComputeResults(*m.current), nil
}

// mutate applies fn to a clone of the open decision, persists it and swaps it
// in. On any error the open decision is left untouched.
func (m *Manager) mutate(ctx context.Context, fn func(d *matrix.Decision) error) (matrix.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return matrix.Decision{}, ErrNoDecision
	}
	return m.mutateLocked(ctx, fn)
}

func (m *Manager) mutateLocked(ctx context.Context, fn func(d *matrix.Decision) error) (matrix.Decision, error) {
	next := m.current.Clone()
	if err := fn(&next); err != nil {
		return matrix.Decision{}, err
	}
	next.PruneScores()

	saved, err := m.repo.Update(ctx, next.ID, store.FullPatch(next))
	if err != nil {
		logrus.WithError(err).WithField("decision", next.ID).Warn("persist decision")
		return matrix.Decision{}, fmt.Errorf("save decision: %w", err)
	}
	m.current = &saved
	m.upsertSummary(saved)
	return saved.Clone(), nil
}

// upsertSummary keeps the cached list current; caller holds m.mu.
func (m *Manager) upsertSummary(d matrix.Decision) {
	s := Summarize(d)
	replaced := false
	for i := range m.summaries {
		if m.summaries[i].ID == d.ID {
			m.summaries[i] = s
			replaced = true
			break
		}
	}
	if !replaced {
		m.summaries = append(m.summaries, s)
	}
	sort.SliceStable(m.summaries, func(i, j int) bool {
		return m.summaries[i].UpdatedAt.After(m.summaries[j].UpdatedAt)
	})
}

// snapshot returns a copy of the open decision for work done outside the lock.
func (m *Manager) snapshot() (matrix.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return matrix.Decision{}, ErrNoDecision
	}
	return m.current.Clone(), nil
}

// mutateIfCurrent is mutate guarded against the open decision having changed
// since id was snapshotted.
func (m *Manager) mutateIfCurrent(ctx context.Context, id string, fn func(d *matrix.Decision) error) (matrix.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.ID != id {
		logrus.WithField("decision", id).Info("discarding ai result for a decision that is no longer open")
		return matrix.Decision{}, ErrStaleSession
	}
	return m.mutateLocked(ctx, fn)
}

// mutateFor is mutate when id is empty and mutateIfCurrent otherwise.
func (m *Manager) mutateFor(ctx context.Context, id string, fn func(d *matrix.Decision) error) (matrix.Decision, error) {
	if id == "" {
		return m.mutate(ctx, fn)
	}
	return m.mutateIfCurrent(ctx, id, fn)
}

func (m *Manager) stillCurrent(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && m.current.ID == id
}
