package session

import (
	"context"
	"fmt"
	"time"

	"decision-matrix/backend/internal/matrix"
	"decision-matrix/backend/internal/publish"
	"decision-matrix/backend/internal/scoring"
)

// Publish sends the open decision with freshly computed results to p and
// returns the public URL.
func (m *Manager) Publish(ctx context.Context, p publish.Publisher, narrative string) (string, error) {
	if p == nil {
		return "", publish.ErrNotConfigured
	}
	snap, err := m.snapshot()
	if err != nil {
		return "", err
	}
	if len(snap.Criteria) == 0 || len(snap.Alternatives) == 0 {
		return "", &matrix.ValidationError{Message: "a published decision needs criteria and alternatives"}
	}
	doc := publish.NewDocument(snap, scoring.ComputeResults(snap), narrative, time.Now())
	url, err := p.Publish(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", snap.ID, err)
	}
	return url, nil
}
