package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"decision-matrix/backend/internal/catalog"
	"decision-matrix/backend/internal/match"
	"decision-matrix/backend/internal/matrix"
	"decision-matrix/backend/internal/prompts"
	"decision-matrix/backend/internal/scoring"
)

// criterionKeyThreshold is the minimum similarity for mapping a batch key
// that is not a criterion id back onto a criterion name.
const criterionKeyThreshold = 0.75

// Insights is the narrative the model writes about computed results.
type Insights struct {
	Summary        string   `json:"summary"`
	Recommendation string   `json:"recommendation"`
	Considerations []string `json:"considerations"`
}

// ProductMatch is a catalog product the model picked, with its reason.
type ProductMatch struct {
	Product catalog.Product `json:"product"`
	Reason  string          `json:"reason"`
}

// Assistant runs the typed AI workflows over a Gateway and sanitises what the
// model returns before it reaches a decision.
type Assistant struct {
	gateway *Gateway
}

func NewAssistant(g *Gateway) *Assistant {
	return &Assistant{gateway: g}
}

// Enabled reports whether the underlying gateway has a provider.
func (a *Assistant) Enabled() bool {
	return a != nil && a.gateway.Enabled()
}

// Gateway exposes the gateway the assistant calls through.
func (a *Assistant) Gateway() *Gateway {
	if a == nil {
		return nil
	}
	return a.gateway
}

func (a *Assistant) callJSON(ctx context.Context, prompt string, opts CallOptions, v any) error {
	if a == nil {
		return ErrProviderUnavailable
	}
	if opts.System == "" {
		opts.System = prompts.System
	}
	return a.gateway.CallJSON(ctx, prompt, opts, v)
}

// number accepts a JSON number or a numeric string. A string that is not a
// number ("N/A", "unknown") leaves it unset instead of failing the decode.
type number struct {
	value float64
	set   bool
}

func (n *number) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		n.value, n.set = v, true
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", raw)
	}
	n.value, n.set = v, true
	return nil
}

// scoreReply is one score as returned by the model: either an object or a
// bare number.
type scoreReply struct {
	Score       number `json:"score"`
	Explanation string `json:"explanation"`
}

func (s *scoreReply) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "{") {
		return s.Score.UnmarshalJSON(data)
	}
	type plain scoreReply
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = scoreReply(p)
	return nil
}

func (s scoreReply) toScore() (matrix.Score, bool) {
	if !s.Score.set || math.IsNaN(s.Score.value) || s.Score.value <= 0 {
		return matrix.Score{}, false
	}
	return matrix.Score{
		Value:       matrix.ClampScore(int(math.Round(s.Score.value))),
		Explanation: strings.TrimSpace(s.Explanation),
	}, true
}

// SuggestCriteria returns new criteria not already on the decision.
func (a *Assistant) SuggestCriteria(ctx context.Context, d matrix.Decision, count int, opts CallOptions) ([]matrix.Criterion, error) {
	var reply []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Weight      number `json:"weight"`
	}
	if err := a.callJSON(ctx, prompts.SuggestCriteria(d, count), opts, &reply); err != nil {
		return nil, err
	}

	seen := match.NewKeySet()
	for _, c := range d.Criteria {
		seen.Add(c.Name)
	}
	out := make([]matrix.Criterion, 0, len(reply))
	for _, r := range reply {
		name := strings.TrimSpace(r.Name)
		if name == "" || !seen.Add(name) {
			continue
		}
		weight := matrix.DefaultWeight
		if r.Weight.set {
			weight = r.Weight.value
		}
		out = append(out, matrix.Criterion{
			ID:          matrix.NewID(),
			Name:        name,
			Description: strings.TrimSpace(r.Description),
			Weight:      matrix.ClampWeight(weight),
		})
	}
	return out, nil
}

// SuggestAlternatives returns new alternatives not already on the decision.
func (a *Assistant) SuggestAlternatives(ctx context.Context, d matrix.Decision, count int, opts CallOptions) ([]matrix.Alternative, error) {
	var reply []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := a.callJSON(ctx, prompts.SuggestAlternatives(d, count), opts, &reply); err != nil {
		return nil, err
	}

	seen := match.NewKeySet()
	for _, alt := range d.Alternatives {
		seen.Add(alt.Name)
	}
	out := make([]matrix.Alternative, 0, len(reply))
	for _, r := range reply {
		name := strings.TrimSpace(r.Name)
		if name == "" || !seen.Add(name) {
			continue
		}
		out = append(out, matrix.Alternative{
			ID:          matrix.NewID(),
			Name:        name,
			Description: strings.TrimSpace(r.Description),
		})
	}
	return out, nil
}

// EvaluateScore scores one alternative against one criterion.
func (a *Assistant) EvaluateScore(ctx context.Context, d matrix.Decision, alternativeID, criterionID string, opts CallOptions) (matrix.Score, error) {
	alt, ok := d.Alternative(alternativeID)
	if !ok {
		return matrix.Score{}, fmt.Errorf("alternative %q not in decision", alternativeID)
	}
	crit, ok := d.Criterion(criterionID)
	if !ok {
		return matrix.Score{}, fmt.Errorf("criterion %q not in decision", criterionID)
	}

	var reply scoreReply
	if err := a.callJSON(ctx, prompts.EvaluateScore(d, alt, crit), opts, &reply); err != nil {
		return matrix.Score{}, err
	}
	score, ok := reply.toScore()
	if !ok {
		return matrix.Score{}, fmt.Errorf("score for %s/%s: %w", alt.Name, crit.Name, ErrUnparsableResponse)
	}
	return score, nil
}

// EvaluateAlternative scores one alternative against every criterion in a
// single call. The result is keyed by criterion id; criteria the model
// skipped are absent.
func (a *Assistant) EvaluateAlternative(ctx context.Context, d matrix.Decision, alternativeID string, opts CallOptions) (map[string]matrix.Score, error) {
	alt, ok := d.Alternative(alternativeID)
	if !ok {
		return nil, fmt.Errorf("alternative %q not in decision", alternativeID)
	}
	if len(d.Criteria) == 0 {
		return map[string]matrix.Score{}, nil
	}

	var reply map[string]scoreReply
	if err := a.callJSON(ctx, prompts.EvaluateBatch(d, alt), opts, &reply); err != nil {
		return nil, err
	}

	names := make([]string, len(d.Criteria))
	for i, c := range d.Criteria {
		names[i] = c.Name
	}
	out := make(map[string]matrix.Score, len(d.Criteria))
	for key, r := range reply {
		critID := resolveCriterionKey(d, names, key)
		if critID == "" {
			continue
		}
		score, ok := r.toScore()
		if !ok {
			continue
		}
		if _, dup := out[critID]; dup {
			continue
		}
		out[critID] = score
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("scores for %s: %w", alt.Name, ErrUnparsableResponse)
	}
	return out, nil
}

func resolveCriterionKey(d matrix.Decision, names []string, key string) string {
	key = strings.TrimSpace(key)
	if d.CriterionIndex(key) >= 0 {
		return key
	}
	idx, _ := match.Best(key, names, criterionKeyThreshold)
	if idx < 0 {
		return ""
	}
	return d.Criteria[idx].ID
}

// GenerateInsights asks for a narrative over already computed results.
func (a *Assistant) GenerateInsights(ctx context.Context, d matrix.Decision, results []scoring.Result, opts CallOptions) (Insights, error) {
	var reply Insights
	if err := a.callJSON(ctx, prompts.GenerateInsights(d, results), opts, &reply); err != nil {
		return Insights{}, err
	}
	reply.Summary = strings.TrimSpace(reply.Summary)
	reply.Recommendation = strings.TrimSpace(reply.Recommendation)
	considerations := make([]string, 0, len(reply.Considerations))
	for _, c := range reply.Considerations {
		if c = strings.TrimSpace(c); c != "" {
			considerations = append(considerations, c)
		}
	}
	reply.Considerations = considerations
	if reply.Summary == "" {
		return Insights{}, fmt.Errorf("insights summary missing: %w", ErrUnparsableResponse)
	}
	return reply, nil
}

// MatchProducts asks the model to pick products for the decision. Ids the
// model invents and products already added as alternatives are dropped.
func (a *Assistant) MatchProducts(ctx context.Context, d matrix.Decision, products []catalog.Product, count int, opts CallOptions) ([]ProductMatch, error) {
	if len(products) == 0 {
		return nil, nil
	}
	var reply []struct {
		ID     string `json:"id"`
		Reason string `json:"reason"`
	}
	if err := a.callJSON(ctx, prompts.MatchProducts(d, products, count), opts, &reply); err != nil {
		return nil, err
	}

	byID := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	taken := make(map[string]struct{}, len(d.Alternatives))
	for _, alt := range d.Alternatives {
		if alt.ProductID != "" {
			taken[alt.ProductID] = struct{}{}
		}
	}

	out := make([]ProductMatch, 0, len(reply))
	for _, r := range reply {
		id := strings.TrimSpace(r.ID)
		p, ok := byID[id]
		if !ok {
			continue
		}
		if _, dup := taken[id]; dup {
			continue
		}
		taken[id] = struct{}{}
		out = append(out, ProductMatch{Product: p, Reason: strings.TrimSpace(r.Reason)})
		if count > 0 && len(out) == count {
			break
		}
	}
	return out, nil
}
