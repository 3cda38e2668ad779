package session

import (
	"fmt"
	"strings"

	"decision-matrix/backend/internal/matrix"
)

// Step is a stage of the editing workflow.
type Step string

const (
	StepCriteria     Step = "criteria"
	StepAlternatives Step = "alternatives"
	StepEvaluation   Step = "evaluation"
	StepResults      Step = "results"
)

// minimum entries needed before the following step opens
const minEntries = 2

// ParseStep maps user input onto a Step.
func ParseStep(value string) (Step, error) {
	switch s := Step(strings.ToLower(strings.TrimSpace(value))); s {
	case StepCriteria, StepAlternatives, StepEvaluation, StepResults:
		return s, nil
	default:
		return "", &matrix.ValidationError{Field: "step", Message: fmt.Sprintf("unknown step %q", value)}
	}
}

// NaturalStep is where a decision resumes based on its contents.
func NaturalStep(d matrix.Decision) Step {
	switch {
	case len(d.Criteria) < minEntries:
		return StepCriteria
	case len(d.Alternatives) < minEntries:
		return StepAlternatives
	case !d.HasAnyScore():
		return StepEvaluation
	default:
		return StepResults
	}
}

// canProceed gates entry into target. Returning to criteria is always allowed.
func canProceed(d matrix.Decision, target Step) bool {
	switch target {
	case StepAlternatives:
		return len(d.Criteria) >= minEntries
	case StepEvaluation:
		return len(d.Alternatives) >= minEntries
	case StepCriteria, StepResults:
		return true
	default:
		return false
	}
}

// Step returns the current workflow step.
func (m *Manager) Step() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// CanProceed reports whether the open decision may move to target.
func (m *Manager) CanProceed(target Step) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return false
	}
	return canProceed(*m.current, target)
}

// GoTo moves to target or returns ErrStepBlocked.
func (m *Manager) GoTo(target Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ErrNoDecision
	}
	if !canProceed(*m.current, target) {
		return fmt.Errorf("%w: %s needs at least %d %s", ErrStepBlocked, target, minEntries, blockedBy(target))
	}
	m.step = target
	return nil
}

func blockedBy(target Step) string {
	switch target {
	case StepAlternatives:
		return "criteria"
	case StepEvaluation:
		return "alternatives"
	default:
		return "entries"
	}
}
