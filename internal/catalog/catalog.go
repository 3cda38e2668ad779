package catalog

import (
	"sort"
	"strings"

	"decision-matrix/backend/internal/match"
	"decision-matrix/backend/internal/matrix"
)

// Product is a curated catalog entry.
type Product struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	Brand       string            `json:"brand,omitempty"`
	Description string            `json:"description,omitempty"`
	Price       *float64          `json:"price,omitempty"`
	Rating      *float64          `json:"rating,omitempty"`
	ImageURL    string            `json:"image_url,omitempty"`
	ExternalURL string            `json:"external_url,omitempty"`
	Specs       map[string]string `json:"specs,omitempty"`
	Pros        []string          `json:"pros,omitempty"`
	Cons        []string          `json:"cons,omitempty"`
}

// Catalog is the read-only product source consumed by the orchestrator.
type Catalog interface {
	GetByCategory(category string) []Product
	Search(query string) []Product
	Get(id string) (Product, bool)
	Categories() []string
}

// searchThreshold drops weak fuzzy hits.
const searchThreshold = 0.45

// Index is an immutable in-memory catalog.
type Index struct {
	products   []Product
	byID       map[string]int
	byCategory map[string][]int
}

var _ Catalog = (*Index)(nil)

// NewIndex builds an index. Products without an id or name are skipped and
// later duplicates of an id are ignored.
func NewIndex(products []Product) *Index {
	idx := &Index{
		byID:       make(map[string]int, len(products)),
		byCategory: make(map[string][]int),
	}
	for _, p := range products {
		p.ID = strings.TrimSpace(p.ID)
		p.Name = strings.TrimSpace(p.Name)
		if p.ID == "" || p.Name == "" {
			continue
		}
		if _, dup := idx.byID[p.ID]; dup {
			continue
		}
		p.Category = categoryKey(p.Category)
		pos := len(idx.products)
		idx.products = append(idx.products, p)
		idx.byID[p.ID] = pos
		idx.byCategory[p.Category] = append(idx.byCategory[p.Category], pos)
	}
	return idx
}

func categoryKey(category string) string {
	return strings.ReplaceAll(match.Normalize(category), " ", "-")
}

// Len returns the number of indexed products.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.products)
}

// GetByCategory returns products in catalog order. Category matching ignores
// case and punctuation.
func (i *Index) GetByCategory(category string) []Product {
	if i == nil {
		return nil
	}
	positions := i.byCategory[categoryKey(category)]
	out := make([]Product, 0, len(positions))
	for _, pos := range positions {
		out = append(out, i.products[pos])
	}
	return out
}

// Get looks up a product by id.
func (i *Index) Get(id string) (Product, bool) {
	if i == nil {
		return Product{}, false
	}
	pos, ok := i.byID[strings.TrimSpace(id)]
	if !ok {
		return Product{}, false
	}
	return i.products[pos], true
}

// Categories lists the known category keys sorted alphabetically.
func (i *Index) Categories() []string {
	if i == nil {
		return nil
	}
	out := make([]string, 0, len(i.byCategory))
	for c := range i.byCategory {
		if c != "" {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// Search ranks products by how well name, brand, category and description
// match the query.
func (i *Index) Search(query string) []Product {
	if i == nil || strings.TrimSpace(query) == "" {
		return nil
	}
	type hit struct {
		pos   int
		score float64
	}
	var hits []hit
	for pos, p := range i.products {
		best := match.Score(query, p.Name)
		for _, field := range []string{p.Brand + " " + p.Name, p.Category, p.Description} {
			if s := match.Score(query, field) * 0.9; s > best {
				best = s
			}
		}
		if best >= searchThreshold {
			hits = append(hits, hit{pos: pos, score: best})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	out := make([]Product, 0, len(hits))
	for _, h := range hits {
		out = append(out, i.products[h.pos])
	}
	return out
}

// ToAlternative maps a product onto a new alternative with a fresh id.
func ToAlternative(p Product) matrix.Alternative {
	alt := matrix.Alternative{
		ID:          matrix.NewID(),
		Name:        p.Name,
		Description: p.Description,
		ProductID:   p.ID,
		ImageURL:    p.ImageURL,
		ExternalURL: p.ExternalURL,
	}
	if p.Brand != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(p.Brand)) {
		alt.Name = p.Brand + " " + p.Name
	}
	if p.Price != nil {
		v := *p.Price
		alt.Price = &v
	}
	if p.Rating != nil {
		v := *p.Rating
		alt.Rating = &v
	}
	if len(p.Specs) > 0 {
		alt.Specs = make(map[string]string, len(p.Specs))
		for k, v := range p.Specs {
			alt.Specs[k] = v
		}
	}
	if len(p.Pros) > 0 {
		alt.Pros = append([]string(nil), p.Pros...)
	}
	if len(p.Cons) > 0 {
		alt.Cons = append([]string(nil), p.Cons...)
	}
	return alt
}
