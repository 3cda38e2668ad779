package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decision-matrix/backend/internal/ai"
	"decision-matrix/backend/internal/cache"
	"decision-matrix/backend/internal/catalog"
	"decision-matrix/backend/internal/matrix"
	"decision-matrix/backend/internal/publish"
	"decision-matrix/backend/internal/session"
	"decision-matrix/backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type replyProvider struct {
	reply func(prompt string) (string, error)
}

func (replyProvider) Name() string { return "ollama" }

func (p replyProvider) Complete(_ context.Context, req ai.ChatRequest) (ai.RawResponse, error) {
	text, err := p.reply(req.Prompt)
	if err != nil {
		return ai.RawResponse{}, err
	}
	body, _ := json.Marshal(map[string]any{"message": map[string]string{"content": text}})
	return ai.RawResponse{Provider: ai.KindOllama, Body: body}, nil
}

type testServer struct {
	*Server
	router *gin.Engine
	repo   *store.Memory
}

func newTestServer(t *testing.T, reply func(prompt string) (string, error), opts ...func(*Config)) testServer {
	t.Helper()
	repo := store.NewMemory()
	idx, err := catalog.Default()
	require.NoError(t, err)

	cfg := Config{Repository: repo, Catalog: idx, Cache: cache.NewMemory(time.Hour)}
	if reply != nil {
		g := ai.NewGateway(cfg.Cache,
			ai.WithProvider(replyProvider{reply: reply}),
			ai.WithRateLimit(0, 0),
			ai.WithRetry(0, 0, 0),
		)
		cfg.Assistant = ai.NewAssistant(g)
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	srv, err := NewServer(cfg)
	require.NoError(t, err)
	router, err := srv.Router()
	require.NoError(t, err)
	return testServer{Server: srv, router: router, repo: repo}
}

func (ts testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (ts testServer) createLaptop(t *testing.T) SessionResponse {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/decisions", CreateDecisionRequest{
		Title:    "Laptop",
		Category: "laptops",
		Criteria: []matrix.Criterion{
			{ID: "perf", Name: "Performance", Weight: 3},
			{ID: "price", Name: "Price", Weight: 2},
		},
		Alternatives: []matrix.Alternative{
			{ID: "mac", Name: "MacBook Air"},
			{ID: "xps", Name: "Dell XPS"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[SessionResponse](t, w)
}

func TestHealthAndConfig(t *testing.T) {
	ts := newTestServer(t, func(string) (string, error) { return "{}", nil })

	w := ts.do(t, http.MethodGet, "/api/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cfg := decode[ConfigResponse](t, w)
	assert.True(t, cfg.AIEnabled)
	assert.Equal(t, []string{"ollama"}, cfg.Providers)
	assert.Equal(t, "ollama", cfg.DefaultProvider)
	assert.Contains(t, cfg.Categories, "laptops")
	assert.False(t, cfg.PublishEnabled)

	w = ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestEditingFlow(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	created := ts.createLaptop(t)
	assert.Equal(t, session.StepEvaluation, created.Step)
	assert.True(t, created.CanProceed[session.StepResults])
	require.Len(t, created.Results, 2)

	w = ts.do(t, http.MethodPut, "/api/session/scores/mac/perf", matrix.Score{Value: 5, Explanation: "fast"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = ts.do(t, http.MethodPut, "/api/session/scores", ScoresRequest{Scores: map[string]map[string]matrix.Score{
		"mac": {"price": {Value: 2}},
		"xps": {"perf": {Value: 4}, "price": {Value: 4}},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[SessionResponse](t, w)
	require.NotNil(t, resp.Leader)
	assert.Equal(t, "xps", resp.Leader.AlternativeID)
	assert.InDelta(t, 20.0, resp.Leader.TotalScore, 1e-9)

	w = ts.do(t, http.MethodPut, "/api/session/scores/mac/perf", matrix.Score{Value: 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(t, http.MethodPut, "/api/session/scores/ghost/perf", matrix.Score{Value: 3})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/api/session/criteria", CriteriaRequest{Criteria: []matrix.Criterion{{ID: "batt", Name: "Battery", Weight: 1}}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = ts.do(t, http.MethodPut, "/api/session/criteria/order", OrderRequest{IDs: []string{"batt", "price", "perf"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	index := 0
	w = ts.do(t, http.MethodPost, "/api/session/alternatives/xps/move", MoveRequest{Index: &index})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp = decode[SessionResponse](t, w)
	assert.Equal(t, "batt", resp.Decision.Criteria[0].ID)
	assert.Equal(t, "xps", resp.Decision.Alternatives[0].ID)

	w = ts.do(t, http.MethodDelete, "/api/session/criteria/price", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[SessionResponse](t, w)
	_, scored := resp.Decision.Scores.Get("xps", "price")
	assert.False(t, scored)

	w = ts.do(t, http.MethodPatch, "/api/session/criteria/perf", session.CriterionPatch{Name: ptr("Speed")})
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodPatch, "/api/session", session.Details{Title: ptr("Work laptop")})
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[SessionResponse](t, w)
	assert.Equal(t, "Work laptop", resp.Decision.Title)

	w = ts.do(t, http.MethodGet, "/api/session/results", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodDelete, "/api/session", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(t, http.MethodPost, "/api/decisions/"+created.Decision.ID+"/open", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, session.StepResults, decode[SessionResponse](t, w).Step)
}

func ptr[T any](v T) *T { return &v }

func TestStepGating(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodPost, "/api/decisions", CreateDecisionRequest{Title: "Empty"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodPut, "/api/session/step", StepRequest{Step: "evaluation"})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = ts.do(t, http.MethodPut, "/api/session/step", StepRequest{Step: "nowhere"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(t, http.MethodPut, "/api/session/step", StepRequest{Step: "results"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateFromTemplateAndProducts(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodPost, "/api/decisions", CreateDecisionRequest{Template: "laptop"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[SessionResponse](t, w)
	assert.Equal(t, "laptops", resp.Decision.Category)

	w = ts.do(t, http.MethodPost, "/api/session/alternatives/products", ProductsRequest{ProductIDs: []string{"lap-mba-m3", "lap-xps-14"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp = decode[SessionResponse](t, w)
	require.Len(t, resp.Decision.Alternatives, 2)
	assert.Equal(t, "lap-mba-m3", resp.Decision.Alternatives[0].ProductID)

	w = ts.do(t, http.MethodPost, "/api/session/alternatives/products", ProductsRequest{ProductIDs: []string{"nope"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResultsCSV(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createLaptop(t)
	ts.do(t, http.MethodPut, "/api/session/scores/mac/perf", matrix.Score{Value: 4})

	w := ts.do(t, http.MethodGet, "/api/session/results.csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rows, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"rank", "alternative", "total_score", "max_possible", "percentage", "strengths", "weaknesses", "Performance", "Price"}, rows[0])
	assert.Equal(t, []string{"1", "MacBook Air", "12.00", "25.00", "48", "Performance", "", "4", ""}, rows[1])
}

func TestExportImport(t *testing.T) {
	ts := newTestServer(t, nil)
	created := ts.createLaptop(t)

	w := ts.do(t, http.MethodGet, "/api/export.json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	exported := decode[[]matrix.Decision](t, w)
	require.Len(t, exported, 1)

	other := newTestServer(t, nil)
	w = other.do(t, http.MethodPost, "/api/import?mode=replace", exported)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, ImportResponse{Imported: 1, Mode: "replace"}, decode[ImportResponse](t, w))

	w = other.do(t, http.MethodGet, "/api/decisions/"+created.Decision.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Laptop", decode[matrix.Decision](t, w).Title)

	w = other.do(t, http.MethodGet, "/api/decisions?q=lap", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[DecisionsResponse](t, w).Total)

	w = other.do(t, http.MethodPost, "/api/import?mode=overwrite", exported)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = other.do(t, http.MethodPost, "/api/import", []matrix.Decision{{Title: "no id"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = other.do(t, http.MethodDelete, "/api/decisions/"+created.Decision.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = other.do(t, http.MethodGet, "/api/decisions/"+created.Decision.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/api/catalog/products?category=headphones", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]catalog.Product](t, w), 3)

	w = ts.do(t, http.MethodGet, "/api/catalog/products/ph-pixel-9", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodGet, "/api/catalog/products/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodGet, "/api/catalog/products", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAIEndpointsWithoutProvider(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createLaptop(t)

	w := ts.do(t, http.MethodPost, "/api/session/ai/criteria", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = ts.do(t, http.MethodPost, "/api/session/evaluate", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = ts.do(t, http.MethodPost, "/api/session/publish", PublishRequest{})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSuggestAndScoreCell(t *testing.T) {
	ts := newTestServer(t, func(prompt string) (string, error) {
		if strings.Contains(prompt, "Option: MacBook Air") {
			return `{"score": 5, "explanation": "very fast"}`, nil
		}
		return `[{"name": "Battery life", "weight": 2}]`, nil
	})
	ts.createLaptop(t)

	w := ts.do(t, http.MethodPost, "/api/session/ai/criteria", session.SuggestOptions{Count: 1, Apply: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	suggested := decode[SuggestionsResponse[matrix.Criterion]](t, w)
	require.Len(t, suggested.Items, 1)
	assert.True(t, suggested.Applied)

	w = ts.do(t, http.MethodPost, "/api/session/ai/score", CellRequest{AlternativeID: "mac", CriterionID: "perf"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, matrix.Score{Value: 5, Explanation: "very fast"}, decode[matrix.Score](t, w))

	w = ts.do(t, http.MethodPost, "/api/session/ai/score", CellRequest{AlternativeID: "mac"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvaluateJobRecordsRun(t *testing.T) {
	ts := newTestServer(t, func(prompt string) (string, error) {
		if strings.Contains(prompt, "Option: Dell XPS") {
			return "", &ai.HTTPError{Provider: "ollama", Status: http.StatusBadRequest, Message: "bad request"}
		}
		return `{"perf": 4, "price": {"score": 3, "explanation": "fair"}}`, nil
	})
	ts.createLaptop(t)

	w := ts.do(t, http.MethodPost, "/api/session/evaluate", EvaluateRequest{})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	started := decode[StartEvaluationResponse](t, w)
	assert.Equal(t, 2, started.Total)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ts.waitForJob(ctx))

	w = ts.do(t, http.MethodGet, "/api/runs/"+started.JobID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	run := decode[store.EvaluationRun](t, w)
	assert.Equal(t, store.RunCompleted, run.Status)
	assert.Equal(t, 2, run.Processed)
	assert.Equal(t, 1, run.Failed)
	assert.Contains(t, run.Errors["xps"], "bad request")
	require.NotNil(t, run.FinishedAt)

	w = ts.do(t, http.MethodGet, "/api/evaluate/status", nil)
	status := decode[EvaluateStatusResponse](t, w)
	assert.False(t, status.Running)
	assert.Equal(t, EventComplete, status.State)
	assert.Equal(t, started.JobID, status.JobID)

	d, _ := ts.Manager().Current()
	assert.Equal(t, matrix.ScoreMatrix{"mac": {"perf": {Value: 4}, "price": {Value: 3, Explanation: "fair"}}}, d.Scores)

	w = ts.do(t, http.MethodDelete, "/api/evaluate/"+started.JobID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublishThroughConfiguredPublisher(t *testing.T) {
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var doc publish.Document
		_ = json.NewDecoder(r.Body).Decode(&doc)
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://decisions.example/" + doc.Slug})
	}))
	defer endpoint.Close()
	client, err := publish.NewHTTPClient(publish.Config{Endpoint: endpoint.URL})
	require.NoError(t, err)

	ts := newTestServer(t, nil, func(cfg *Config) { cfg.Publisher = client })
	created := ts.createLaptop(t)

	w := ts.do(t, http.MethodPost, "/api/session/publish", PublishRequest{Narrative: "close call"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "https://decisions.example/"+publish.Slug("Laptop", created.Decision.ID), decode[map[string]string](t, w)["url"])
}

func TestEvaluateStreamReplaysAndBroadcasts(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.evalNotifier.Broadcast(EvaluationEvent{Type: EventStarted, JobID: "job-1", Total: 2})

	httpSrv := httptest.NewServer(ts.router)
	defer httpSrv.Close()
	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/api/evaluate/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var replay EvaluationEvent
	require.NoError(t, conn.ReadJSON(&replay))
	assert.Equal(t, EventStarted, replay.Type)
	assert.Equal(t, "job-1", replay.JobID)

	require.Eventually(t, func() bool { return ts.evalNotifier.Clients() == 1 }, time.Second, 10*time.Millisecond)
	ts.evalNotifier.Broadcast(EvaluationEvent{Type: EventEvaluation, JobID: "job-1", Processed: 1, Total: 2, Alternative: "MacBook Air"})

	var event EvaluationEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, EventEvaluation, event.Type)
	assert.Equal(t, 1, event.Processed)
	assert.False(t, event.Timestamp.IsZero())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: &matrix.ValidationError{Field: "name", Message: "is required"}, want: http.StatusBadRequest},
		{err: fmt.Errorf("open: %w", store.ErrNotFound), want: http.StatusNotFound},
		{err: session.ErrCriterionNotFound, want: http.StatusNotFound},
		{err: session.ErrNoDecision, want: http.StatusConflict},
		{err: session.ErrStaleSession, want: http.StatusConflict},
		{err: fmt.Errorf("x: %w", ai.ErrProviderUnavailable), want: http.StatusServiceUnavailable},
		{err: publish.ErrNotConfigured, want: http.StatusServiceUnavailable},
		{err: fmt.Errorf("openai: %w", ai.ErrProviderTimeout), want: http.StatusGatewayTimeout},
		{err: &ai.HTTPError{Status: 500}, want: http.StatusBadGateway},
		{err: &publish.Error{Status: 409, Message: "taken"}, want: http.StatusBadGateway},
		{err: ai.ErrUnparsableResponse, want: http.StatusBadGateway},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
