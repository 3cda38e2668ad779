package prompts

import (
	"fmt"
	"sort"
	"strings"

	"decision-matrix/backend/internal/catalog"
	"decision-matrix/backend/internal/matrix"
	"decision-matrix/backend/internal/scoring"
)

// System is sent as the system message on every call.
const System = "You are a decision analysis assistant helping a user compare options with a weighted decision matrix. " +
	"Reply with valid JSON only, exactly in the shape requested. Do not wrap the JSON in prose, greetings or explanations."

// Default suggestion counts.
const (
	DefaultCriteriaCount     = 5
	DefaultAlternativesCount = 5
	maxProducts              = 40
)

// ScaleAnchors describes each value of the 1-5 rating scale.
var ScaleAnchors = []string{
	"1 = Poor: fails this criterion or is clearly the worst choice",
	"2 = Below average: noticeable shortcomings",
	"3 = Average: acceptable, nothing remarkable",
	"4 = Good: clearly above average",
	"5 = Excellent: best in class for this criterion",
}

func writeContext(b *strings.Builder, d matrix.Decision) {
	fmt.Fprintf(b, "Decision: %s\n", strings.TrimSpace(d.Title))
	if desc := strings.TrimSpace(d.Description); desc != "" {
		fmt.Fprintf(b, "Context: %s\n", desc)
	}
	if cat := strings.TrimSpace(d.Category); cat != "" {
		fmt.Fprintf(b, "Category: %s\n", cat)
	}
}

func writeScale(b *strings.Builder) {
	b.WriteString("Rate on a 1-5 integer scale:\n")
	for _, anchor := range ScaleAnchors {
		fmt.Fprintf(b, "- %s\n", anchor)
	}
	b.WriteString("Use the full range from 1 to 5. Do not cluster scores around 3; reserve 3 for genuinely average performance and give 1, 2, 4 or 5 whenever the evidence supports it.\n")
}

func writeAlternative(b *strings.Builder, alt matrix.Alternative) {
	fmt.Fprintf(b, "Option: %s\n", alt.Name)
	if desc := strings.TrimSpace(alt.Description); desc != "" {
		fmt.Fprintf(b, "Option details: %s\n", desc)
	}
	if alt.Price != nil {
		fmt.Fprintf(b, "Price: %.2f\n", *alt.Price)
	}
	if alt.Rating != nil {
		fmt.Fprintf(b, "Customer rating: %.1f\n", *alt.Rating)
	}
	if len(alt.Specs) > 0 {
		fmt.Fprintf(b, "Specs: %s\n", formatSpecs(alt.Specs))
	}
	if len(alt.Pros) > 0 {
		fmt.Fprintf(b, "Pros: %s\n", strings.Join(alt.Pros, "; "))
	}
	if len(alt.Cons) > 0 {
		fmt.Fprintf(b, "Cons: %s\n", strings.Join(alt.Cons, "; "))
	}
}

// SuggestCriteria asks for new weighted criteria that are not already present.
func SuggestCriteria(d matrix.Decision, count int) string {
	if count <= 0 {
		count = DefaultCriteriaCount
	}
	b := &strings.Builder{}
	writeContext(b, d)
	if len(d.Criteria) > 0 {
		names := make([]string, 0, len(d.Criteria))
		for _, c := range d.Criteria {
			names = append(names, c.Name)
		}
		fmt.Fprintf(b, "Existing criteria (do not repeat): %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(b, "Suggest %d evaluation criteria for this decision.\n", count)
	fmt.Fprintf(b, "Give each an importance weight between %.0f and %.0f where %.0f is most important.\n", 1.0, matrix.MaxWeight, matrix.MaxWeight)
	b.WriteString("Respond with a JSON array of objects in exactly this shape:\n")
	b.WriteString(`[{"name": "short criterion name", "description": "one sentence", "weight": 3}]` + "\n")
	b.WriteString("Return only the JSON array with no extra text.\n")
	return b.String()
}

// SuggestAlternatives asks for candidate options not already listed.
func SuggestAlternatives(d matrix.Decision, count int) string {
	if count <= 0 {
		count = DefaultAlternativesCount
	}
	b := &strings.Builder{}
	writeContext(b, d)
	if len(d.Criteria) > 0 {
		names := make([]string, 0, len(d.Criteria))
		for _, c := range d.Criteria {
			names = append(names, c.Name)
		}
		fmt.Fprintf(b, "Criteria that matter: %s\n", strings.Join(names, ", "))
	}
	if len(d.Alternatives) > 0 {
		names := make([]string, 0, len(d.Alternatives))
		for _, a := range d.Alternatives {
			names = append(names, a.Name)
		}
		fmt.Fprintf(b, "Options already listed (do not repeat): %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(b, "Suggest %d realistic, specific options to compare.\n", count)
	b.WriteString("Respond with a JSON array of objects in exactly this shape:\n")
	b.WriteString(`[{"name": "option name", "description": "one sentence"}]` + "\n")
	b.WriteString("Return only the JSON array with no extra text.\n")
	return b.String()
}

// EvaluateScore asks for one score of one option against one criterion.
func EvaluateScore(d matrix.Decision, alt matrix.Alternative, crit matrix.Criterion) string {
	b := &strings.Builder{}
	writeContext(b, d)
	writeAlternative(b, alt)
	fmt.Fprintf(b, "Criterion: %s\n", crit.Name)
	if desc := strings.TrimSpace(crit.Description); desc != "" {
		fmt.Fprintf(b, "Criterion meaning: %s\n", desc)
	}
	writeScale(b)
	b.WriteString("Respond with a JSON object in exactly this shape:\n")
	b.WriteString(`{"score": 4, "explanation": "one or two sentences"}` + "\n")
	b.WriteString("Return only the JSON object with no extra text.\n")
	return b.String()
}

// EvaluateBatch asks for scores of one option against every criterion,
// keyed by criterion id.
func EvaluateBatch(d matrix.Decision, alt matrix.Alternative) string {
	b := &strings.Builder{}
	writeContext(b, d)
	writeAlternative(b, alt)
	b.WriteString("Criteria (id: name - meaning):\n")
	for _, c := range d.Criteria {
		if desc := strings.TrimSpace(c.Description); desc != "" {
			fmt.Fprintf(b, "- %s: %s - %s\n", c.ID, c.Name, desc)
			continue
		}
		fmt.Fprintf(b, "- %s: %s\n", c.ID, c.Name)
	}
	writeScale(b)
	b.WriteString("Score the option against every criterion. Respond with a JSON object keyed by criterion id in exactly this shape:\n")
	b.WriteString(`{"<criterion id>": {"score": 4, "explanation": "one sentence"}}` + "\n")
	b.WriteString("Include every criterion id listed above. Return only the JSON object with no extra text.\n")
	return b.String()
}

// GenerateInsights asks for a narrative summary of computed results.
func GenerateInsights(d matrix.Decision, results []scoring.Result) string {
	b := &strings.Builder{}
	writeContext(b, d)
	b.WriteString("Criteria and weights:\n")
	for _, c := range d.Criteria {
		fmt.Fprintf(b, "- %s (weight %.1f)\n", c.Name, c.Weight)
	}
	b.WriteString("Ranked results:\n")
	for _, r := range results {
		fmt.Fprintf(b, "%d. %s - %.2f of %.2f (%d%%)", r.Rank, r.Name, r.TotalScore, r.MaxPossible, r.Percentage)
		if len(r.Strengths) > 0 {
			fmt.Fprintf(b, "; strengths: %s", strings.Join(r.Strengths, ", "))
		}
		if len(r.Weaknesses) > 0 {
			fmt.Fprintf(b, "; weaknesses: %s", strings.Join(r.Weaknesses, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString("Explain the outcome to the user: why the leader won, how close the race is, and what could change the result.\n")
	b.WriteString("Respond with a JSON object in exactly this shape:\n")
	b.WriteString(`{"summary": "two or three sentences", "recommendation": "name of the recommended option", "considerations": ["short point"]}` + "\n")
	b.WriteString("Return only the JSON object with no extra text.\n")
	return b.String()
}

// MatchProducts asks the model to pick catalog products that fit the decision.
func MatchProducts(d matrix.Decision, products []catalog.Product, count int) string {
	if count <= 0 {
		count = DefaultAlternativesCount
	}
	b := &strings.Builder{}
	writeContext(b, d)
	if len(d.Criteria) > 0 {
		b.WriteString("Criteria (weight):\n")
		for _, c := range d.Criteria {
			fmt.Fprintf(b, "- %s (%.1f)\n", c.Name, c.Weight)
		}
	}
	b.WriteString("Available products (id | name | price | rating | specs):\n")
	for i, p := range products {
		if i == maxProducts {
			break
		}
		fmt.Fprintf(b, "- %s | %s | %s | %s | %s\n", p.ID, p.Name, formatOptional(p.Price, "%.2f"), formatOptional(p.Rating, "%.1f"), formatSpecs(p.Specs))
	}
	fmt.Fprintf(b, "Pick up to %d products from the list that best fit this decision. Use only ids from the list.\n", count)
	b.WriteString("Respond with a JSON array of objects in exactly this shape:\n")
	b.WriteString(`[{"id": "product id", "reason": "one sentence"}]` + "\n")
	b.WriteString("Return only the JSON array with no extra text.\n")
	return b.String()
}

func formatSpecs(specs map[string]string) string {
	if len(specs) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(specs))
	for k := range specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+specs[k])
	}
	return strings.Join(parts, ", ")
}

func formatOptional(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}
