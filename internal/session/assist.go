package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"decision-matrix/backend/internal/ai"
	"decision-matrix/backend/internal/catalog"
	"decision-matrix/backend/internal/matrix"
	"decision-matrix/backend/internal/metrics"
	"decision-matrix/backend/internal/scoring"
	"decision-matrix/backend/internal/util"
)

// SuggestOptions control the suggestion workflows. With Apply set the
// suggestions are added to the open decision in one atomic step.
type SuggestOptions struct {
	Count    int    `json:"count"`
	Apply    bool   `json:"apply"`
	Provider string `json:"provider"`
}

func (o SuggestOptions) call() ai.CallOptions {
	return ai.CallOptions{Provider: o.Provider}
}

func (m *Manager) requireAssistant() error {
	if !m.assistant.Enabled() {
		return fmt.Errorf("assistant: %w", ai.ErrProviderUnavailable)
	}
	return nil
}

// SuggestCriteria asks the assistant for criteria the decision lacks.
func (m *Manager) SuggestCriteria(ctx context.Context, opts SuggestOptions) ([]matrix.Criterion, error) {
	if err := m.requireAssistant(); err != nil {
		return nil, err
	}
	snap, err := m.snapshot()
	if err != nil {
		return nil, err
	}
	suggested, err := m.assistant.SuggestCriteria(ctx, snap, opts.Count, opts.call())
	if err != nil {
		return nil, err
	}
	if !m.stillCurrent(snap.ID) {
		return nil, ErrStaleSession
	}
	if !opts.Apply || len(suggested) == 0 {
		return suggested, nil
	}
	return m.addCriteria(ctx, snap.ID, suggested)
}

// SuggestAlternatives asks the assistant for options the decision lacks.
func (m *Manager) SuggestAlternatives(ctx context.Context, opts SuggestOptions) ([]matrix.Alternative, error) {
	if err := m.requireAssistant(); err != nil {
		return nil, err
	}
	snap, err := m.snapshot()
	if err != nil {
		return nil, err
	}
	suggested, err := m.assistant.SuggestAlternatives(ctx, snap, opts.Count, opts.call())
	if err != nil {
		return nil, err
	}
	if !m.stillCurrent(snap.ID) {
		return nil, ErrStaleSession
	}
	if !opts.Apply || len(suggested) == 0 {
		return suggested, nil
	}
	return m.addAlternatives(ctx, snap.ID, suggested)
}

// SuggestProducts lets the assistant pick catalog products for the decision.
// Candidates come from the decision category, or a title search when the
// category has none.
func (m *Manager) SuggestProducts(ctx context.Context, opts SuggestOptions) ([]ai.ProductMatch, error) {
	if m.catalog == nil {
		return nil, &matrix.ValidationError{Field: "products", Message: "catalog is not configured"}
	}
	if err := m.requireAssistant(); err != nil {
		return nil, err
	}
	snap, err := m.snapshot()
	if err != nil {
		return nil, err
	}
	candidates := m.catalog.GetByCategory(snap.Category)
	if len(candidates) == 0 {
		candidates = m.catalog.Search(snap.Title)
	}
	if len(candidates) == 0 {
		return []ai.ProductMatch{}, nil
	}

	matches, err := m.assistant.MatchProducts(ctx, snap, candidates, opts.Count, opts.call())
	if err != nil {
		return nil, err
	}
	if !m.stillCurrent(snap.ID) {
		return nil, ErrStaleSession
	}
	if opts.Apply && len(matches) > 0 {
		ids := make([]string, 0, len(matches))
		for _, match := range matches {
			ids = append(ids, match.Product.ID)
		}
		if _, err := m.addProducts(ctx, snap, ids); err != nil {
			return nil, err
		}
	}
	return matches, nil
}

// EvaluateCell scores one cell with the assistant and records it.
func (m *Manager) EvaluateCell(ctx context.Context, alternativeID, criterionID, provider string) (matrix.Score, error) {
	if err := m.requireAssistant(); err != nil {
		return matrix.Score{}, err
	}
	snap, err := m.snapshot()
	if err != nil {
		return matrix.Score{}, err
	}
	if err := checkCell(snap, alternativeID, criterionID); err != nil {
		return matrix.Score{}, err
	}

	score, err := m.assistant.EvaluateScore(ctx, snap, alternativeID, criterionID, ai.CallOptions{Provider: provider})
	if err != nil {
		return matrix.Score{}, err
	}
	_, err = m.mutateIfCurrent(ctx, snap.ID, func(d *matrix.Decision) error {
		if err := checkCell(*d, alternativeID, criterionID); err != nil {
			return err
		}
		d.Scores.Set(alternativeID, criterionID, score)
		return nil
	})
	if err != nil {
		return matrix.Score{}, err
	}
	return score, nil
}

// EvaluateOptions control EvaluateAll.
type EvaluateOptions struct {
	Provider string
	// OnlyMissing skips fully scored alternatives and never overwrites an
	// existing cell.
	OnlyMissing bool
	// Progress is called once per finished alternative, never concurrently.
	Progress func(Progress)
}

// Progress reports one finished alternative of a batch evaluation.
type Progress struct {
	Total         int
	Processed     int
	Failed        int
	AlternativeID string
	Name          string
	Err           error
}

// Outcome is the per-alternative result of EvaluateAll.
type Outcome struct {
	AlternativeID string
	Scores        map[string]matrix.Score
	Err           error
	DurationMs    int64
}

// EvaluateAll scores every alternative against every criterion with bounded
// parallelism. A failing alternative never aborts the batch: successes are
// merged and each failure is reported in the returned map.
func (m *Manager) EvaluateAll(ctx context.Context, opts EvaluateOptions) (map[string]Outcome, error) {
	if err := m.requireAssistant(); err != nil {
		return nil, err
	}
	snap, err := m.snapshot()
	if err != nil {
		return nil, err
	}
	targets := EvaluationTargets(snap, opts.OnlyMissing)
	outcomes := make(map[string]Outcome, len(targets))
	if len(targets) == 0 {
		return outcomes, nil
	}

	metrics.EvaluationsActive.Inc()
	defer metrics.EvaluationsActive.Dec()

	var (
		mu        sync.Mutex
		processed int
		failed    int
	)
	record := func(alt matrix.Alternative, outcome Outcome) {
		mu.Lock()
		defer mu.Unlock()
		outcomes[alt.ID] = outcome
		processed++
		if outcome.Err != nil {
			failed++
		}
		if opts.Progress != nil {
			opts.Progress(Progress{
				Total:         len(targets),
				Processed:     processed,
				Failed:        failed,
				AlternativeID: alt.ID,
				Name:          alt.Name,
				Err:           outcome.Err,
			})
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(m.concurrency)
	for _, alt := range targets {
		alt := alt
		g.Go(func() error {
			timer := util.StartTimer()
			if err := ctx.Err(); err != nil {
				record(alt, Outcome{AlternativeID: alt.ID, Err: err})
				return nil
			}
			scores, err := m.assistant.EvaluateAlternative(ctx, snap, alt.ID, ai.CallOptions{Provider: opts.Provider})
			if err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"decision":    snap.ID,
					"alternative": alt.Name,
				}).Warn("ai evaluation failed")
			}
			record(alt, Outcome{AlternativeID: alt.ID, Scores: scores, Err: err, DurationMs: timer.ElapsedMs()})
			return nil
		})
	}
	_ = g.Wait()

	merged := 0
	for _, o := range outcomes {
		if o.Err == nil {
			merged++
		}
	}
	logrus.WithFields(logrus.Fields{
		"decision":     snap.ID,
		"alternatives": len(targets),
		"succeeded":    merged,
		"failed":       len(targets) - merged,
	}).Info("batch evaluation finished")
	if merged == 0 {
		return outcomes, nil
	}

	// Cancelling the batch stops new calls but keeps what already finished.
	_, err = m.mutateIfCurrent(context.WithoutCancel(ctx), snap.ID, func(d *matrix.Decision) error {
		for altID, o := range outcomes {
			if o.Err != nil || d.AlternativeIndex(altID) < 0 {
				continue
			}
			for critID, s := range o.Scores {
				if d.CriterionIndex(critID) < 0 {
					continue
				}
				if _, scored := d.Scores.Get(altID, critID); scored && opts.OnlyMissing {
					continue
				}
				d.Scores.Set(altID, critID, s)
			}
		}
		return nil
	})
	if err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

// EvaluationTargets lists the alternatives EvaluateAll would send to the
// assistant: none without criteria, and with onlyMissing only those that
// still have unscored cells.
func EvaluationTargets(d matrix.Decision, onlyMissing bool) []matrix.Alternative {
	if len(d.Criteria) == 0 {
		return nil
	}
	out := make([]matrix.Alternative, 0, len(d.Alternatives))
	for _, alt := range d.Alternatives {
		if onlyMissing && len(d.Scores[alt.ID]) >= len(d.Criteria) {
			continue
		}
		out = append(out, alt)
	}
	return out
}

// GenerateInsights asks the assistant to explain the current results.
func (m *Manager) GenerateInsights(ctx context.Context, provider string) (ai.Insights, error) {
	if err := m.requireAssistant(); err != nil {
		return ai.Insights{}, err
	}
	snap, err := m.snapshot()
	if err != nil {
		return ai.Insights{}, err
	}
	results := scoring.ComputeResults(snap)
	insights, err := m.assistant.GenerateInsights(ctx, snap, results, ai.CallOptions{Provider: provider})
	if err != nil {
		return ai.Insights{}, err
	}
	if !m.stillCurrent(snap.ID) {
		return ai.Insights{}, ErrStaleSession
	}
	return insights, nil
}

// Catalog exposes the configured catalog, if any.
func (m *Manager) Catalog() catalog.Catalog {
	return m.catalog
}
