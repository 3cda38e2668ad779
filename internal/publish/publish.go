package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"decision-matrix/backend/internal/match"
	"decision-matrix/backend/internal/matrix"
	"decision-matrix/backend/internal/scoring"
)

const (
	defaultTimeout = 30 * time.Second
	maxSlugLength  = 60
	generator      = "decision-matrix"
)

// ErrNotConfigured is returned when no publish endpoint is set.
var ErrNotConfigured = errors.New("publish: endpoint not configured")

// Metadata carries the non-matrix parts of a published decision.
type Metadata struct {
	Description  string  `json:"description,omitempty"`
	Category     string  `json:"category,omitempty"`
	Narrative    string  `json:"narrative,omitempty"`
	Leader       string  `json:"leader,omitempty"`
	Completeness float64 `json:"completeness"`
	Generator    string  `json:"generator"`
}

// Document is the JSON body sent to the publish endpoint.
type Document struct {
	ID           string               `json:"id"`
	Slug         string               `json:"slug"`
	Title        string               `json:"title"`
	Criteria     []matrix.Criterion   `json:"criteria"`
	Alternatives []matrix.Alternative `json:"alternatives"`
	Results      []scoring.Result     `json:"results"`
	PublishedAt  time.Time            `json:"publishedAt"`
	Metadata     Metadata             `json:"metadata"`
}

// NewDocument builds the publish document from a decision and its results.
func NewDocument(d matrix.Decision, results []scoring.Result, narrative string, now time.Time) Document {
	doc := Document{
		ID:           d.ID,
		Slug:         Slug(d.Title, d.ID),
		Title:        d.Title,
		Criteria:     d.Clone().Criteria,
		Alternatives: d.Clone().Alternatives,
		Results:      results,
		PublishedAt:  now.UTC(),
		Metadata: Metadata{
			Description:  d.Description,
			Category:     d.Category,
			Narrative:    strings.TrimSpace(narrative),
			Completeness: d.Completeness(),
			Generator:    generator,
		},
	}
	if leader, ok := scoring.Leader(results); ok {
		doc.Metadata.Leader = leader.Name
	}
	if doc.Results == nil {
		doc.Results = []scoring.Result{}
	}
	return doc
}

// Slug derives a URL-safe slug from the title, suffixed with the first
// characters of id so equal titles stay distinct.
func Slug(title, id string) string {
	base := strings.ReplaceAll(match.Normalize(title), " ", "-")
	if runes := []rune(base); len(runes) > maxSlugLength {
		base = strings.TrimRight(string(runes[:maxSlugLength]), "-")
	}
	suffix := strings.ReplaceAll(strings.ToLower(id), "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	switch {
	case base == "":
		if suffix == "" {
			return "decision"
		}
		return "decision-" + suffix
	case suffix == "":
		return base
	default:
		return base + "-" + suffix
	}
}

// Publisher hands a document to the publish collaborator and returns the
// public URL.
type Publisher interface {
	Publish(ctx context.Context, doc Document) (string, error)
}

// Error is a failed publish with a message fit for the user.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return "publish failed: " + e.Message
	}
	return fmt.Sprintf("publish failed (%d): %s", e.Status, e.Message)
}

// Config points the HTTP publisher at an endpoint.
type Config struct {
	Endpoint   string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// HTTPClient POSTs documents as JSON.
type HTTPClient struct {
	httpClient *http.Client
	endpoint   string
	token      string
}

func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, ErrNotConfigured
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPClient{httpClient: client, endpoint: endpoint, token: strings.TrimSpace(cfg.Token)}, nil
}

func (c *HTTPClient) Publish(ctx context.Context, doc Document) (string, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal publish document: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logrus.WithError(err).WithField("endpoint", c.endpoint).Warn("publish request failed")
		return "", &Error{Message: "could not reach the publishing service"}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var reply struct {
		URL     string `json:"url"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &reply)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(firstNonEmpty(reply.Error, reply.Message))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", &Error{Status: resp.StatusCode, Message: msg}
	}
	if strings.TrimSpace(reply.URL) == "" {
		return "", &Error{Status: resp.StatusCode, Message: "publishing service returned no url"}
	}

	logrus.WithFields(logrus.Fields{"decision": doc.ID, "slug": doc.Slug}).Info("decision published")
	return strings.TrimSpace(reply.URL), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
