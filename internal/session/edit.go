package session

import (
	"context"
	"fmt"
	"strings"

	"decision-matrix/backend/internal/catalog"
	"decision-matrix/backend/internal/matrix"
)

// CriterionPatch is a partial criterion update.
type CriterionPatch struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Weight      *float64 `json:"weight"`
}

// AlternativePatch is a partial alternative update.
type AlternativePatch struct {
	Name        *string           `json:"name"`
	Description *string           `json:"description"`
	Price       *float64          `json:"price"`
	Rating      *float64          `json:"rating"`
	ImageURL    *string           `json:"image_url"`
	ExternalURL *string           `json:"external_url"`
	Specs       map[string]string `json:"specs"`
	Pros        []string          `json:"pros"`
	Cons        []string          `json:"cons"`
}

func prepareCriterion(c matrix.Criterion) (matrix.Criterion, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Description = strings.TrimSpace(c.Description)
	if c.ID == "" {
		c.ID = matrix.NewID()
	}
	if c.Weight == 0 {
		c.Weight = matrix.DefaultWeight
	}
	if err := matrix.ValidateCriterion(c); err != nil {
		return matrix.Criterion{}, err
	}
	return c, nil
}

func prepareAlternative(a matrix.Alternative) (matrix.Alternative, error) {
	a.Name = strings.TrimSpace(a.Name)
	a.Description = strings.TrimSpace(a.Description)
	if a.ID == "" {
		a.ID = matrix.NewID()
	}
	if err := matrix.ValidateAlternative(a); err != nil {
		return matrix.Alternative{}, err
	}
	return a, nil
}

// AddCriterion appends one criterion.
func (m *Manager) AddCriterion(ctx context.Context, c matrix.Criterion) (matrix.Criterion, error) {
	added, err := m.AddCriteria(ctx, []matrix.Criterion{c})
	if err != nil {
		return matrix.Criterion{}, err
	}
	return added[0], nil
}

// AddCriteria appends criteria atomically: all appear or none do.
func (m *Manager) AddCriteria(ctx context.Context, criteria []matrix.Criterion) ([]matrix.Criterion, error) {
	return m.addCriteria(ctx, "", criteria)
}

// addCriteria appends criteria to the open decision. A non-empty id pins the
// decision the criteria were produced for.
func (m *Manager) addCriteria(ctx context.Context, id string, criteria []matrix.Criterion) ([]matrix.Criterion, error) {
	prepared := make([]matrix.Criterion, 0, len(criteria))
	for _, c := range criteria {
		p, err := prepareCriterion(c)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, p)
	}
	_, err := m.mutateFor(ctx, id, func(d *matrix.Decision) error {
		seen := make(map[string]struct{}, len(d.Criteria)+len(prepared))
		for _, c := range d.Criteria {
			seen[c.ID] = struct{}{}
		}
		for _, c := range prepared {
			if _, dup := seen[c.ID]; dup {
				return &matrix.ValidationError{Field: "criteria", Message: fmt.Sprintf("duplicate id %q", c.ID)}
			}
			seen[c.ID] = struct{}{}
		}
		d.Criteria = append(d.Criteria, prepared...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prepared, nil
}

// UpdateCriterion edits a criterion in place.
func (m *Manager) UpdateCriterion(ctx context.Context, id string, patch CriterionPatch) (matrix.Criterion, error) {
	var updated matrix.Criterion
	_, err := m.mutate(ctx, func(d *matrix.Decision) error {
		idx := d.CriterionIndex(id)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrCriterionNotFound, id)
		}
		c := d.Criteria[idx]
		if patch.Name != nil {
			c.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Description != nil {
			c.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Weight != nil {
			c.Weight = *patch.Weight
		}
		if err := matrix.ValidateCriterion(c); err != nil {
			return err
		}
		d.Criteria[idx] = c
		updated = c
		return nil
	})
	return updated, err
}

// RemoveCriterion deletes a criterion and every score recorded against it.
func (m *Manager) RemoveCriterion(ctx context.Context, id string) error {
	_, err := m.mutate(ctx, func(d *matrix.Decision) error {
		idx := d.CriterionIndex(id)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrCriterionNotFound, id)
		}
		d.Criteria = append(d.Criteria[:idx], d.Criteria[idx+1:]...)
		for altID := range d.Scores {
			d.Scores.Delete(altID, id)
		}
		return nil
	})
	return err
}

// ReorderCriteria sets the criteria order. ids must be a permutation of the
// current criterion ids.
func (m *Manager) ReorderCriteria(ctx context.Context, ids []string) error {
	_, err := m.mutate(ctx, func(d *matrix.Decision) error {
		order, err := permutation(ids, len(d.Criteria), d.CriterionIndex)
		if err != nil {
			return err
		}
		next := make([]matrix.Criterion, len(order))
		for i, idx := range order {
			next[i] = d.Criteria[idx]
		}
		d.Criteria = next
		return nil
	})
	return err
}

// MoveCriterion moves one criterion to index, clamped to the list bounds.
func (m *Manager) MoveCriterion(ctx context.Context, id string, index int) error {
	_, err := m.mutate(ctx, func(d *matrix.Decision) error {
		from := d.CriterionIndex(id)
		if from < 0 {
			return fmt.Errorf("%w: %s", ErrCriterionNotFound, id)
		}
		d.Criteria = move(d.Criteria, from, index)
		return nil
	})
	return err
}

// AddAlternative appends one alternative.
func (m *Manager) AddAlternative(ctx context.Context, a matrix.Alternative) (matrix.Alternative, error) {
	added, err := m.AddAlternatives(ctx, []matrix.Alternative{a})
	if err != nil {
		return matrix.Alternative{}, err
	}
	return added[0], nil
}

// AddAlternatives appends alternatives atomically: all appear or none do.
func (m *Manager) AddAlternatives(ctx context.Context, alternatives []matrix.Alternative) ([]matrix.Alternative, error) {
	return m.addAlternatives(ctx, "", alternatives)
}

func (m *Manager) addAlternatives(ctx context.Context, id string, alternatives []matrix.Alternative) ([]matrix.Alternative, error) {
	prepared := make([]matrix.Alternative, 0, len(alternatives))
	for _, a := range alternatives {
		p, err := prepareAlternative(a)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, p)
	}
	_, err := m.mutateFor(ctx, id, func(d *matrix.Decision) error {
		seen := make(map[string]struct{}, len(d.Alternatives)+len(prepared))
		for _, a := range d.Alternatives {
			seen[a.ID] = struct{}{}
		}
		for _, a := range prepared {
			if _, dup := seen[a.ID]; dup {
				return &matrix.ValidationError{Field: "alternatives", Message: fmt.Sprintf("duplicate id %q", a.ID)}
			}
			seen[a.ID] = struct{}{}
		}
		d.Alternatives = append(d.Alternatives, prepared...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prepared, nil
}

// AddProducts turns catalog products into alternatives. Products already on
// the decision are skipped; unknown ids are rejected before anything changes.
func (m *Manager) AddProducts(ctx context.Context, productIDs []string) ([]matrix.Alternative, error) {
	if m.catalog == nil {
		return nil, &matrix.ValidationError{Field: "products", Message: "catalog is not configured"}
	}
	current, err := m.snapshot()
	if err != nil {
		return nil, err
	}
	return m.addProducts(ctx, current, productIDs)
}

// addProducts adds the products missing from current, which must still be
// the open decision when the change is saved.
func (m *Manager) addProducts(ctx context.Context, current matrix.Decision, productIDs []string) ([]matrix.Alternative, error) {
	present := make(map[string]struct{}, len(current.Alternatives))
	for _, a := range current.Alternatives {
		if a.ProductID != "" {
			present[a.ProductID] = struct{}{}
		}
	}

	alternatives := make([]matrix.Alternative, 0, len(productIDs))
	for _, id := range productIDs {
		id = strings.TrimSpace(id)
		p, ok := m.catalog.Get(id)
		if !ok {
			return nil, &matrix.ValidationError{Field: "products", Message: fmt.Sprintf("unknown product %q", id)}
		}
		if _, dup := present[id]; dup {
			continue
		}
		present[id] = struct{}{}
		alternatives = append(alternatives, catalog.ToAlternative(p))
	}
	if len(alternatives) == 0 {
		return []matrix.Alternative{}, nil
	}
	return m.addAlternatives(ctx, current.ID, alternatives)
}

// UpdateAlternative edits an alternative in place.
func (m *Manager) UpdateAlternative(ctx context.Context, id string, patch AlternativePatch) (matrix.Alternative, error) {
	var updated matrix.Alternative
	_, err := m.mutate(ctx, func(d *matrix.Decision) error {
		idx := d.AlternativeIndex(id)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrAlternativeNotFound, id)
		}
		a := d.Alternatives[idx].Clone()
		if patch.Name != nil {
			a.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Description != nil {
			a.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Price != nil {
			v := *patch.Price
			a.Price = &v
		}
		if patch.Rating != nil {
			v := *patch.Rating
			a.Rating = &v
		}
		if patch.ImageURL != nil {
			a.ImageURL = strings.TrimSpace(*patch.ImageURL)
		}
		if patch.ExternalURL != nil {
			a.ExternalURL = strings.TrimSpace(*patch.ExternalURL)
		}
		if patch.Specs != nil {
			a.Specs = make(map[string]string, len(patch.Specs))
			for k, v := range patch.Specs {
				a.Specs[k] = v
			}
		}
		if patch.Pros != nil {
			a.Pros = append([]string(nil), patch.Pros...)
		}
		if patch.Cons != nil {
			a.Cons = append([]string(nil), patch.Cons...)
		}
		if err := matrix.ValidateAlternative(a); err != nil {
			return err
		}
		d.Alternatives[idx] = a
		updated = a
		return nil
	})
	return updated, err
}

// RemoveAlternative deletes an alternative and its whole score row.
func (m *Manager) RemoveAlternative(ctx context.Context, id string) error {
	_, err := m.mutate(ctx, func(d *matrix.Decision) error {
		idx := d.AlternativeIndex(id)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrAlternativeNotFound, id)
		}
		d.Alternatives = append(d.Alternatives[:idx], d.Alternatives[idx+1:]...)
		delete(d.Scores, id)
		return nil
	})
	return err
}

// ReorderAlternatives sets the alternatives order. ids must be a permutation
// of the current alternative ids.
func (m *Manager) ReorderAlternatives(ctx context.Context, ids []string) error {
	_, err := m.mutate(ctx, func(d *matrix.Decision) error {
		order, err := permutation(ids, len(d.Alternatives), d.AlternativeIndex)
		if err != nil {
			return err
		}
		next := make([]matrix.Alternative, len(order))
		for i, idx := range order {
			next[i] = d.Alternatives[idx]
		}
		d.Alternatives = next
		return nil
	})
	return err
}

// MoveAlternative moves one alternative to index, clamped to the list bounds.
func (m *Manager) MoveAlternative(ctx context.Context, id string, index int) error {
	_, err := m.mutate(ctx, func(d *matrix.Decision) error {
		from := d.AlternativeIndex(id)
		if from < 0 {
			return fmt.Errorf("%w: %s", ErrAlternativeNotFound, id)
		}
		d.Alternatives = move(d.Alternatives, from, index)
		return nil
	})
	return err
}

// SetScore records one cell.
func (m *Manager) SetScore(ctx context.Context, alternativeID, criterionID string, score matrix.Score) error {
	return m.SetAllScores(ctx, map[string]map[string]matrix.Score{
		alternativeID: {criterionID: score},
	})
}

// ClearScore removes one cell so it reads as unscored again.
func (m *Manager) ClearScore(ctx context.Context, alternativeID, criterionID string) error {
	_, err := m.mutate(ctx, func(d *matrix.Decision) error {
		if err := checkCell(*d, alternativeID, criterionID); err != nil {
			return err
		}
		d.Scores.Delete(alternativeID, criterionID)
		return nil
	})
	return err
}

// SetAllScores records many cells atomically. Every cell is validated before
// any is written.
func (m *Manager) SetAllScores(ctx context.Context, scores map[string]map[string]matrix.Score) error {
	for _, row := range scores {
		for _, s := range row {
			if err := matrix.ValidateScore(s); err != nil {
				return err
			}
		}
	}
	_, err := m.mutate(ctx, func(d *matrix.Decision) error {
		for altID, row := range scores {
			for critID := range row {
				if err := checkCell(*d, altID, critID); err != nil {
					return err
				}
			}
		}
		for altID, row := range scores {
			for critID, s := range row {
				s.Explanation = strings.TrimSpace(s.Explanation)
				d.Scores.Set(altID, critID, s)
			}
		}
		return nil
	})
	return err
}

func checkCell(d matrix.Decision, alternativeID, criterionID string) error {
	if d.AlternativeIndex(alternativeID) < 0 {
		return fmt.Errorf("%w: %s", ErrAlternativeNotFound, alternativeID)
	}
	if d.CriterionIndex(criterionID) < 0 {
		return fmt.Errorf("%w: %s", ErrCriterionNotFound, criterionID)
	}
	return nil
}

// permutation maps ids onto current indexes, rejecting anything that is not
// an exact reordering.
func permutation(ids []string, n int, index func(string) int) ([]int, error) {
	if len(ids) != n {
		return nil, &matrix.ValidationError{Field: "order", Message: fmt.Sprintf("must list all %d ids", n)}
	}
	used := make([]bool, n)
	order := make([]int, 0, n)
	for _, id := range ids {
		idx := index(id)
		if idx < 0 {
			return nil, &matrix.ValidationError{Field: "order", Message: fmt.Sprintf("unknown id %q", id)}
		}
		if used[idx] {
			return nil, &matrix.ValidationError{Field: "order", Message: fmt.Sprintf("duplicate id %q", id)}
		}
		used[idx] = true
		order = append(order, idx)
	}
	return order, nil
}

func move[T any](items []T, from, to int) []T {
	if to < 0 {
		to = 0
	}
	if to > len(items)-1 {
		to = len(items) - 1
	}
	if from == to {
		return items
	}
	item := items[from]
	out := make([]T, 0, len(items))
	out = append(out, items[:from]...)
	out = append(out, items[from+1:]...)
	out = append(out[:to], append([]T{item}, out[to:]...)...)
	return out
}
