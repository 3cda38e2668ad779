package matrix

import (
	"fmt"
	"sort"
	"strings"
)

// Template seeds a new decision with a category and weighted criteria.
type Template struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Category    string              `json:"category"`
	Description string              `json:"description"`
	Criteria    []TemplateCriterion `json:"criteria"`
}

// TemplateCriterion is a criterion without an id; ids are minted per decision.
type TemplateCriterion struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

var builtinTemplates = []Template{
	{
		ID:          "consumer-product",
		Name:        "Consumer product",
		Category:    "electronics",
		Description: "Compare gadgets or appliances before buying.",
		Criteria: []TemplateCriterion{
			{Name: "Price", Description: "Total cost including accessories", Weight: 2},
			{Name: "Performance", Description: "Speed and capability for daily use", Weight: 3},
			{Name: "Build quality", Description: "Materials, durability and finish", Weight: 1.5},
			{Name: "Reviews", Description: "Reputation among owners and critics", Weight: 1},
			{Name: "Warranty", Description: "Length and coverage of support", Weight: 0.5},
		},
	},
	{
		ID:          "job-offer",
		Name:        "Job offer",
		Category:    "career",
		Description: "Weigh competing offers.",
		Criteria: []TemplateCriterion{
			{Name: "Compensation", Description: "Salary, bonus and equity", Weight: 3},
			{Name: "Growth", Description: "Learning and promotion prospects", Weight: 2.5},
			{Name: "Work-life balance", Description: "Hours, flexibility and time off", Weight: 2},
			{Name: "Team", Description: "Manager and colleagues", Weight: 1.5},
			{Name: "Commute", Description: "Travel time or remote policy", Weight: 1},
		},
	},
	{
		ID:          "apartment",
		Name:        "Apartment",
		Category:    "housing",
		Description: "Choose between rental listings.",
		Criteria: []TemplateCriterion{
			{Name: "Rent", Description: "Monthly cost including fees", Weight: 3},
			{Name: "Location", Description: "Neighbourhood and access to transit", Weight: 2.5},
			{Name: "Size", Description: "Living space and layout", Weight: 2},
			{Name: "Condition", Description: "Age, repairs and appliances", Weight: 1.5},
			{Name: "Amenities", Description: "Laundry, parking, outdoor space", Weight: 1},
		},
	},
	{
		ID:          "vendor-selection",
		Name:        "Vendor selection",
		Category:    "business",
		Description: "Evaluate suppliers or SaaS vendors.",
		Criteria: []TemplateCriterion{
			{Name: "Cost", Description: "Licence and operating cost", Weight: 2.5},
			{Name: "Features", Description: "Coverage of required capabilities", Weight: 3},
			{Name: "Support", Description: "Responsiveness and SLA", Weight: 1.5},
			{Name: "Security", Description: "Certifications and data handling", Weight: 2},
			{Name: "Integration", Description: "APIs and fit with existing tools", Weight: 1.5},
		},
	},
	{
		ID:          "laptop",
		Name:        "Laptop",
		Category:    "laptops",
		Description: "Pick a laptop for work or study.",
		Criteria: []TemplateCriterion{
			{Name: "Price", Weight: 2.5},
			{Name: "Performance", Weight: 3},
			{Name: "Battery life", Weight: 2},
			{Name: "Portability", Weight: 1.5},
			{Name: "Display", Weight: 1},
		},
	},
}

// Templates returns the built-in templates sorted by name.
func Templates() []Template {
	out := make([]Template, len(builtinTemplates))
	for i, tpl := range builtinTemplates {
		out[i] = tpl
		out[i].Criteria = cloneSlice(tpl.Criteria)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupTemplate finds a built-in template by id (case-insensitive).
func LookupTemplate(id string) (Template, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, tpl := range builtinTemplates {
		if tpl.ID == id {
			tpl.Criteria = cloneSlice(tpl.Criteria)
			return tpl, true
		}
	}
	return Template{}, false
}

// NewFromTemplate builds an unsaved decision with the template's criteria
// pre-populated. An empty title falls back to the template name.
func NewFromTemplate(templateID, title string) (Decision, error) {
	tpl, ok := LookupTemplate(templateID)
	if !ok {
		return Decision{}, &ValidationError{Field: "template", Message: fmt.Sprintf("unknown template %q", templateID)}
	}
	if strings.TrimSpace(title) == "" {
		title = tpl.Name
	}
	d := Decision{
		Title:       title,
		Description: tpl.Description,
		Category:    tpl.Category,
		Criteria:    make([]Criterion, 0, len(tpl.Criteria)),
	}
	for _, c := range tpl.Criteria {
		d.Criteria = append(d.Criteria, Criterion{
			ID:          NewID(),
			Name:        c.Name,
			Description: c.Description,
			Weight:      ClampWeight(c.Weight),
		})
	}
	d.Normalize()
	return d, nil
}
