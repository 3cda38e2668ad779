package scoring

import (
	"math"
	"sort"

	"decision-matrix/backend/internal/matrix"
)

// highlightLimit caps strengths and weaknesses per alternative.
const highlightLimit = 3

// Strength and weakness thresholds on the 1-5 scale.
const (
	StrengthThreshold = 4
	WeaknessThreshold = 2
)

// Result is the derived ranking output for one alternative.
type Result struct {
	AlternativeID string      `json:"alternative_id"`
	Name          string      `json:"name"`
	TotalScore    float64     `json:"total_score"`
	MaxPossible   float64     `json:"max_possible"`
	Percentage    int         `json:"percentage"`
	Rank          int         `json:"rank"`
	Strengths     []string    `json:"strengths"`
	Weaknesses    []string    `json:"weaknesses"`
	Breakdown     []Breakdown `json:"breakdown"`
}

// Breakdown is one criterion's contribution to an alternative's total.
type Breakdown struct {
	CriterionID   string  `json:"criterion_id"`
	CriterionName string  `json:"criterion_name"`
	Weight        float64 `json:"weight"`
	Value         int     `json:"value"`
	Weighted      float64 `json:"weighted"`
	Scored        bool    `json:"scored"`
}

type rated struct {
	name  string
	value int
}

// ComputeResults scores every alternative of the decision and returns them
// ranked by total score. Unscored cells count as zero. Ties keep insertion
// order. The decision is not modified.
func ComputeResults(d matrix.Decision) []Result {
	maxPossible := 0.0
	for _, crit := range d.Criteria {
		maxPossible += crit.Weight * matrix.ScaleMax
	}

	results := make([]Result, 0, len(d.Alternatives))
	for _, alt := range d.Alternatives {
		total := 0.0
		breakdown := make([]Breakdown, 0, len(d.Criteria))
		var highs, lows []rated
		for _, crit := range d.Criteria {
			score, ok := d.Scores.Get(alt.ID, crit.ID)
			value := 0
			if ok {
				value = score.Value
			}
			weighted := float64(value) * crit.Weight
			total += weighted
			breakdown = append(breakdown, Breakdown{
				CriterionID:   crit.ID,
				CriterionName: crit.Name,
				Weight:        crit.Weight,
				Value:         value,
				Weighted:      round2(weighted),
				Scored:        ok,
			})
			if !ok {
				continue
			}
			if value >= StrengthThreshold {
				highs = append(highs, rated{name: crit.Name, value: value})
			}
			if value <= WeaknessThreshold {
				lows = append(lows, rated{name: crit.Name, value: value})
			}
		}

		sort.SliceStable(highs, func(i, j int) bool { return highs[i].value > highs[j].value })
		sort.SliceStable(lows, func(i, j int) bool { return lows[i].value < lows[j].value })

		results = append(results, Result{
			AlternativeID: alt.ID,
			Name:          alt.Name,
			TotalScore:    round2(total),
			MaxPossible:   round2(maxPossible),
			Percentage:    percentage(total, maxPossible),
			Strengths:     names(highs),
			Weaknesses:    names(lows),
			Breakdown:     breakdown,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].TotalScore > results[j].TotalScore
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// Leader returns the top-ranked result, if any.
func Leader(results []Result) (Result, bool) {
	if len(results) == 0 {
		return Result{}, false
	}
	return results[0], true
}

// Completeness is the fraction of matrix cells that hold a score.
func Completeness(d matrix.Decision) float64 {
	return d.Completeness()
}

func percentage(total, maxPossible float64) int {
	if maxPossible <= 0 {
		return 0
	}
	return int(math.Round(total / maxPossible * 100))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func names(in []rated) []string {
	out := make([]string, 0, highlightLimit)
	for i, r := range in {
		if i == highlightLimit {
			break
		}
		out = append(out, r.name)
	}
	return out
}
