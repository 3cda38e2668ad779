package prompts

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"decision-matrix/backend/internal/catalog"
	"decision-matrix/backend/internal/matrix"
	"decision-matrix/backend/internal/scoring"
)

func sample() matrix.Decision {
	price := 1099.0
	return matrix.Decision{
		Title:       "New laptop",
		Description: "For travel and coding",
		Category:    "laptops",
		Criteria: []matrix.Criterion{
			{ID: "c1", Name: "Performance", Description: "CPU and RAM", Weight: 3},
			{ID: "c2", Name: "Price", Weight: 2},
		},
		Alternatives: []matrix.Alternative{
			{ID: "a1", Name: "MacBook Air", Price: &price, Specs: map[string]string{"ram": "16GB", "cpu": "M3"}},
			{ID: "a2", Name: "ThinkPad X1"},
		},
	}
}

func TestEveryPromptDemandsBareJSON(t *testing.T) {
	d := sample()
	all := map[string]string{
		"criteria":     SuggestCriteria(d, 0),
		"alternatives": SuggestAlternatives(d, 0),
		"score":        EvaluateScore(d, d.Alternatives[0], d.Criteria[0]),
		"batch":        EvaluateBatch(d, d.Alternatives[0]),
		"insights":     GenerateInsights(d, scoring.ComputeResults(d)),
		"products":     MatchProducts(d, []catalog.Product{{ID: "p1", Name: "X"}}, 0),
	}
	for name, prompt := range all {
		assert.Contains(t, prompt, "Return only the JSON", name)
		assert.Contains(t, prompt, "Decision: New laptop", name)
		assert.Contains(t, prompt, "Context: For travel and coding", name)
	}
}

func TestScoringPromptsCarryScale(t *testing.T) {
	d := sample()
	for _, prompt := range []string{EvaluateScore(d, d.Alternatives[0], d.Criteria[0]), EvaluateBatch(d, d.Alternatives[0])} {
		for _, anchor := range ScaleAnchors {
			assert.Contains(t, prompt, anchor)
		}
		assert.Contains(t, prompt, "Do not cluster scores around 3")
		assert.Contains(t, prompt, "Price: 1099.00")
		assert.Contains(t, prompt, "Specs: cpu: M3, ram: 16GB")
	}
}

func TestSuggestionPromptsListExisting(t *testing.T) {
	d := sample()
	assert.Contains(t, SuggestCriteria(d, 0), "Existing criteria (do not repeat): Performance, Price")
	assert.Contains(t, SuggestCriteria(d, 0), fmt.Sprintf("Suggest %d evaluation criteria", DefaultCriteriaCount))
	assert.Contains(t, SuggestAlternatives(d, 2), "Options already listed (do not repeat): MacBook Air, ThinkPad X1")
	assert.Contains(t, SuggestAlternatives(d, 2), "Suggest 2 realistic")

	empty := matrix.Decision{Title: "Blank"}
	assert.NotContains(t, SuggestCriteria(empty, 3), "Existing criteria")
	assert.NotContains(t, SuggestAlternatives(empty, 3), "already listed")
}

func TestEvaluateBatchKeysByCriterionID(t *testing.T) {
	prompt := EvaluateBatch(sample(), sample().Alternatives[1])
	assert.Contains(t, prompt, "- c1: Performance - CPU and RAM")
	assert.Contains(t, prompt, "- c2: Price\n")
	assert.Contains(t, prompt, "Option: ThinkPad X1")
}

func TestGenerateInsightsListsRanking(t *testing.T) {
	d := sample()
	d.Scores = matrix.ScoreMatrix{"a1": {"c1": {Value: 5}, "c2": {Value: 2}}}
	prompt := GenerateInsights(d, scoring.ComputeResults(d))
	assert.Contains(t, prompt, "1. MacBook Air - 19.00 of 25.00 (76%); strengths: Performance; weaknesses: Price")
	assert.Contains(t, prompt, "2. ThinkPad X1 - 0.00 of 25.00 (0%)")
}

func TestMatchProductsCapsList(t *testing.T) {
	products := make([]catalog.Product, 0, 50)
	for i := 0; i < 50; i++ {
		products = append(products, catalog.Product{ID: fmt.Sprintf("p%02d", i), Name: "Laptop"})
	}
	prompt := MatchProducts(sample(), products, 3)
	assert.Contains(t, prompt, "- p39 |")
	assert.NotContains(t, prompt, "- p40 |")
	assert.Contains(t, prompt, "Pick up to 3 products")
	assert.Equal(t, maxProducts, strings.Count(prompt, " | Laptop | - | - | -\n"))
}
