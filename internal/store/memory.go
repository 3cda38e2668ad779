package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"decision-matrix/backend/internal/matrix"
)

// Memory is an in-process Repository. Values are cloned on the way in and
// out so callers never share maps with the store.
type Memory struct {
	mu        sync.RWMutex
	decisions map[string]matrix.Decision
	runs      map[string]EvaluationRun
	now       func() time.Time
}

var (
	_ Repository = (*Memory)(nil)
	_ RunStore   = (*Memory)(nil)
)

// NewMemory returns an empty in-memory repository.
func NewMemory(opts ...Option) *Memory {
	o := buildOptions(opts)
	return &Memory{
		decisions: make(map[string]matrix.Decision),
		runs:      make(map[string]EvaluationRun),
		now:       o.now,
	}
}

func (m *Memory) Create(_ context.Context, partial matrix.Decision) (matrix.Decision, error) {
	d := prepareCreate(partial, m.now())
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[d.ID] = d
	return d.Clone(), nil
}

func (m *Memory) Get(_ context.Context, id string) (matrix.Decision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.decisions[id]
	if !ok {
		return matrix.Decision{}, fmt.Errorf("decision %s: %w", id, ErrNotFound)
	}
	return d.Clone(), nil
}

func (m *Memory) List(_ context.Context) ([]matrix.Decision, error) {
	return m.filter(func(matrix.Decision) bool { return true }), nil
}

func (m *Memory) Search(_ context.Context, query string) ([]matrix.Decision, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	return m.filter(func(d matrix.Decision) bool {
		return strings.Contains(strings.ToLower(d.Title), q)
	}), nil
}

func (m *Memory) filter(keep func(matrix.Decision) bool) []matrix.Decision {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]matrix.Decision, 0, len(m.decisions))
	for _, d := range m.decisions {
		if keep(d) {
			out = append(out, d.Clone())
		}
	}
	sortDecisions(out)
	return out
}

func (m *Memory) Update(_ context.Context, id string, patch Patch) (matrix.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.decisions[id]
	if !ok {
		return matrix.Decision{}, fmt.Errorf("decision %s: %w", id, ErrNotFound)
	}
	next := current.Clone()
	patch.Apply(&next)
	next = next.Clone()
	next.UpdatedAt = m.now()
	m.decisions[id] = next
	return next.Clone(), nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.decisions, id)
	return nil
}

func (m *Memory) ExportAll(ctx context.Context) ([]matrix.Decision, error) {
	return m.List(ctx)
}

func (m *Memory) ImportAll(_ context.Context, decisions []matrix.Decision, mode ImportMode) error {
	if mode != ModeReplace && mode != ModeMerge {
		return &matrix.ValidationError{Field: "mode", Message: fmt.Sprintf("unknown import mode %q", mode)}
	}
	now := m.now()
	prepared := make([]matrix.Decision, 0, len(decisions))
	for _, in := range decisions {
		d, err := prepareImport(in, now)
		if err != nil {
			return err
		}
		prepared = append(prepared, d)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if mode == ModeReplace {
		m.decisions = make(map[string]matrix.Decision, len(prepared))
	}
	for _, d := range prepared {
		m.decisions[d.ID] = d
	}
	return nil
}

func (m *Memory) SaveRun(_ context.Context, run EvaluationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.Errors != nil {
		errs := make(map[string]string, len(run.Errors))
		for k, v := range run.Errors {
			errs[k] = v
		}
		run.Errors = errs
	}
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) GetRun(_ context.Context, id string) (EvaluationRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return EvaluationRun{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, nil
}

func sortDecisions(list []matrix.Decision) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
