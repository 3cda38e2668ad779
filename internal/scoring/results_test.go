package scoring

import (
	"reflect"
	"testing"

	"decision-matrix/backend/internal/matrix"
)

func buildDecision(criteria []matrix.Criterion, alts []string, scores map[string]map[string]int) matrix.Decision {
	d := matrix.Decision{ID: "d", Criteria: criteria, Scores: matrix.ScoreMatrix{}}
	for _, id := range alts {
		d.Alternatives = append(d.Alternatives, matrix.Alternative{ID: id, Name: id})
	}
	for alt, row := range scores {
		for crit, v := range row {
			d.Scores.Set(alt, crit, matrix.Score{Value: v})
		}
	}
	return d
}

func TestComputeResultsPerformancePriceScenario(t *testing.T) {
	d := buildDecision(
		[]matrix.Criterion{
			{ID: "perf", Name: "Performance", Weight: 2},
			{ID: "price", Name: "Price", Weight: 1},
		},
		[]string{"B", "A"},
		map[string]map[string]int{
			"A": {"perf": 5, "price": 3},
			"B": {"perf": 3, "price": 5},
		},
	)

	results := ComputeResults(d)
	if len(results) != 2 {
		t.Fatalf("expected 2 results got %d", len(results))
	}

	tests := []struct {
		name       string
		idx        int
		id         string
		total      float64
		percentage int
		rank       int
	}{
		{"leader", 0, "A", 13, 87, 1},
		{"runner up", 1, "B", 11, 73, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := results[tc.idx]
			if r.AlternativeID != tc.id {
				t.Fatalf("expected %s at %d got %s", tc.id, tc.idx, r.AlternativeID)
			}
			if r.TotalScore != tc.total {
				t.Fatalf("expected total %.2f got %.2f", tc.total, r.TotalScore)
			}
			if r.MaxPossible != 15 {
				t.Fatalf("expected max 15 got %.2f", r.MaxPossible)
			}
			if r.Percentage != tc.percentage {
				t.Fatalf("expected percentage %d got %d", tc.percentage, r.Percentage)
			}
			if r.Rank != tc.rank {
				t.Fatalf("expected rank %d got %d", tc.rank, r.Rank)
			}
		})
	}

	if !reflect.DeepEqual(results[0].Strengths, []string{"Performance"}) {
		t.Fatalf("unexpected strengths %v", results[0].Strengths)
	}
	if len(results[0].Weaknesses) != 0 {
		t.Fatalf("unexpected weaknesses %v", results[0].Weaknesses)
	}
}

func TestComputeResultsZeroCriteria(t *testing.T) {
	d := buildDecision(nil, []string{"A", "B", "C"}, nil)
	results := ComputeResults(d)
	if len(results) != 3 {
		t.Fatalf("expected 3 results got %d", len(results))
	}
	for i, r := range results {
		if r.Percentage != 0 || r.MaxPossible != 0 || r.TotalScore != 0 {
			t.Fatalf("expected zeroed result got %+v", r)
		}
		if r.Rank != i+1 {
			t.Fatalf("expected rank %d got %d", i+1, r.Rank)
		}
	}
}

func TestComputeResultsStableTies(t *testing.T) {
	crit := []matrix.Criterion{{ID: "c", Name: "Quality", Weight: 1}}
	d := buildDecision(crit, []string{"first", "second", "third", "fourth"}, map[string]map[string]int{
		"first":  {"c": 3},
		"second": {"c": 4},
		"third":  {"c": 3},
		"fourth": {"c": 4},
	})

	got := []string{}
	for _, r := range ComputeResults(d) {
		got = append(got, r.AlternativeID)
	}
	want := []string{"second", "fourth", "first", "third"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v got %v", want, got)
	}
}

func TestComputeResultsUnscoredAlternative(t *testing.T) {
	crit := []matrix.Criterion{{ID: "c1", Name: "A", Weight: 1}, {ID: "c2", Name: "B", Weight: 1.5}}
	d := buildDecision(crit, []string{"scored", "blank"}, map[string]map[string]int{
		"scored": {"c1": 4},
	})

	results := ComputeResults(d)
	if len(results) != 2 {
		t.Fatalf("expected 2 results got %d", len(results))
	}
	blank := results[1]
	if blank.AlternativeID != "blank" || blank.TotalScore != 0 || blank.Percentage != 0 {
		t.Fatalf("unexpected blank result %+v", blank)
	}
	if len(blank.Weaknesses) != 0 || len(blank.Strengths) != 0 {
		t.Fatalf("unscored cells must not be highlighted: %+v", blank)
	}
	for _, b := range blank.Breakdown {
		if b.Scored {
			t.Fatalf("expected unscored breakdown got %+v", b)
		}
	}
	if results[0].MaxPossible != 12.5 {
		t.Fatalf("expected max 12.5 got %.2f", results[0].MaxPossible)
	}
}

func TestComputeResultsHighlightsCappedAndOrdered(t *testing.T) {
	crit := []matrix.Criterion{
		{ID: "a", Name: "Alpha", Weight: 1},
		{ID: "b", Name: "Beta", Weight: 1},
		{ID: "c", Name: "Gamma", Weight: 1},
		{ID: "d", Name: "Delta", Weight: 1},
		{ID: "e", Name: "Eps", Weight: 1},
		{ID: "f", Name: "Zeta", Weight: 1},
		{ID: "g", Name: "Eta", Weight: 1},
		{ID: "h", Name: "Theta", Weight: 1},
		{ID: "i", Name: "Iota", Weight: 1},
	}
	d := buildDecision(crit, []string{"x"}, map[string]map[string]int{
		"x": {"a": 4, "b": 5, "c": 4, "d": 5, "e": 2, "f": 1, "g": 2, "h": 1, "i": 3},
	})

	r := ComputeResults(d)[0]
	if want := []string{"Beta", "Delta", "Alpha"}; !reflect.DeepEqual(r.Strengths, want) {
		t.Fatalf("strengths: expected %v got %v", want, r.Strengths)
	}
	if want := []string{"Zeta", "Theta", "Eps"}; !reflect.DeepEqual(r.Weaknesses, want) {
		t.Fatalf("weaknesses: expected %v got %v", want, r.Weaknesses)
	}
}

func TestComputeResultsRoundsAndDoesNotMutate(t *testing.T) {
	crit := []matrix.Criterion{{ID: "c", Name: "C", Weight: 1.234}}
	d := buildDecision(crit, []string{"x"}, map[string]map[string]int{"x": {"c": 3}})
	before := d.Clone()

	r := ComputeResults(d)[0]
	if r.TotalScore != 3.7 {
		t.Fatalf("expected rounded total 3.7 got %v", r.TotalScore)
	}
	if r.MaxPossible != 6.17 {
		t.Fatalf("expected rounded max 6.17 got %v", r.MaxPossible)
	}
	if r.Percentage != 60 {
		t.Fatalf("expected 60 got %d", r.Percentage)
	}
	if !reflect.DeepEqual(before, d) {
		t.Fatalf("decision mutated")
	}
	again := ComputeResults(d)
	if !reflect.DeepEqual(again[0], r) {
		t.Fatalf("expected deterministic output")
	}
}

func TestLeader(t *testing.T) {
	if _, ok := Leader(nil); ok {
		t.Fatalf("expected no leader for empty results")
	}
	leader, ok := Leader([]Result{{AlternativeID: "a"}, {AlternativeID: "b"}})
	if !ok || leader.AlternativeID != "a" {
		t.Fatalf("unexpected leader %+v", leader)
	}
}
