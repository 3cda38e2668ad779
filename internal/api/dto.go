package api

import (
	"time"

	"decision-matrix/backend/internal/ai"
	"decision-matrix/backend/internal/matrix"
	"decision-matrix/backend/internal/scoring"
	"decision-matrix/backend/internal/session"
)

// CreateDecisionRequest starts a decision, optionally from a template.
type CreateDecisionRequest struct {
	Template     string               `json:"template"`
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	Category     string               `json:"category"`
	Criteria     []matrix.Criterion   `json:"criteria"`
	Alternatives []matrix.Alternative `json:"alternatives"`
}

// DecisionsResponse lists stored decisions.
type DecisionsResponse struct {
	Items []session.Summary `json:"items"`
	Total int               `json:"total"`
}

// SessionResponse describes the open decision and where the user is.
type SessionResponse struct {
	Decision   matrix.Decision       `json:"decision"`
	Step       session.Step          `json:"step"`
	CanProceed map[session.Step]bool `json:"can_proceed"`
	Results    []scoring.Result      `json:"results"`
	Leader     *scoring.Result       `json:"leader,omitempty"`
}

// StepRequest moves the wizard to another step.
type StepRequest struct {
	Step string `json:"step" binding:"required"`
}

// CriteriaRequest adds one or more criteria in a single atomic step.
type CriteriaRequest struct {
	Criteria []matrix.Criterion `json:"criteria" binding:"required,min=1"`
}

// AlternativesRequest adds one or more alternatives in a single atomic step.
type AlternativesRequest struct {
	Alternatives []matrix.Alternative `json:"alternatives" binding:"required,min=1"`
}

// ProductsRequest adds catalog products as alternatives.
type ProductsRequest struct {
	ProductIDs []string `json:"product_ids" binding:"required,min=1"`
}

// OrderRequest is a full reordering by id.
type OrderRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// MoveRequest moves one item to an index; out-of-range indexes are clamped.
type MoveRequest struct {
	Index *int `json:"index" binding:"required"`
}

// ScoresRequest replaces several cells at once.
type ScoresRequest struct {
	Scores map[string]map[string]matrix.Score `json:"scores" binding:"required"`
}

// CellRequest asks the assistant to score one cell.
type CellRequest struct {
	AlternativeID string `json:"alternative_id" binding:"required"`
	CriterionID   string `json:"criterion_id" binding:"required"`
	Provider      string `json:"provider"`
}

// ProviderRequest selects a provider for a one-shot AI call.
type ProviderRequest struct {
	Provider string `json:"provider"`
}

// EvaluateRequest starts a batch AI evaluation of the open decision.
type EvaluateRequest struct {
	Provider    string `json:"provider"`
	OnlyMissing bool   `json:"only_missing"`
}

// StartEvaluationResponse describes the asynchronous evaluation kickoff.
type StartEvaluationResponse struct {
	JobID      string    `json:"job_id"`
	DecisionID string    `json:"decision_id"`
	Total      int       `json:"total"`
	StartedAt  time.Time `json:"started_at"`
}

// EvaluateStatusResponse reports the running or last evaluation job.
type EvaluateStatusResponse struct {
	Running    bool   `json:"running"`
	JobID      string `json:"job_id"`
	DecisionID string `json:"decision_id"`
	State      string `json:"state"`
	Message    string `json:"message"`
	Processed  int    `json:"processed"`
	Failed     int    `json:"failed"`
	Total      int    `json:"total"`
}

// SuggestionsResponse wraps suggestion lists; Applied is set when they were
// added to the decision.
type SuggestionsResponse[T any] struct {
	Items   []T  `json:"items"`
	Applied bool `json:"applied"`
}

// ProductMatchDTO is one catalog product picked by the assistant.
type ProductMatchDTO struct {
	ProductID string   `json:"product_id"`
	Name      string   `json:"name"`
	Brand     string   `json:"brand,omitempty"`
	Price     *float64 `json:"price,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

func productMatchesToDTO(matches []ai.ProductMatch) []ProductMatchDTO {
	out := make([]ProductMatchDTO, 0, len(matches))
	for _, m := range matches {
		out = append(out, ProductMatchDTO{
			ProductID: m.Product.ID,
			Name:      m.Product.Name,
			Brand:     m.Product.Brand,
			Price:     m.Product.Price,
			Reason:    m.Reason,
		})
	}
	return out
}

// PublishRequest publishes the open decision.
type PublishRequest struct {
	Narrative string `json:"narrative"`
}

// ImportResponse reports how many decisions an import wrote.
type ImportResponse struct {
	Imported int    `json:"imported"`
	Mode     string `json:"mode"`
}

// ConfigResponse is the public runtime configuration.
type ConfigResponse struct {
	AIEnabled       bool     `json:"ai_enabled"`
	Providers       []string `json:"providers"`
	DefaultProvider string   `json:"default_provider"`
	Categories      []string `json:"categories"`
	Templates       int      `json:"templates"`
	PublishEnabled  bool     `json:"publish_enabled"`
}
