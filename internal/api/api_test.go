package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mounikasaka1/hackai/internal/api"
	"github.com/mounikasaka1/hackai/internal/classifier"
	"github.com/mounikasaka1/hackai/internal/database"
	"github.com/mounikasaka1/hackai/internal/domain"
	"github.com/mounikasaka1/hackai/internal/logger"
	"github.com/mounikasaka1/hackai/internal/patterns"
	"github.com/mounikasaka1/hackai/internal/processor"
	"github.com/mounikasaka1/hackai/internal/storage"
	"github.com/mounikasaka1/hackai/internal/telemetry"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []*database.HistoryEntry
	limit   int
	err     error
}

func (f *fakeHistory) Create(_ context.Context, e *database.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return f.err
}

func (f *fakeHistory) CreateBatch(_ context.Context, entries []*database.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entries...)
	return f.err
}

func (f *fakeHistory) List(_ context.Context, limit int) ([]database.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limit = limit
	out := make([]database.HistoryEntry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, *e)
	}
	return out, f.err
}

func (f *fakeHistory) Stats(context.Context) (*database.HistoryStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &database.HistoryStats{Total: len(f.entries), ByIncidentType: map[string]int{}}, nil
}

type fakeIndexer struct {
	docs []storage.ClassifiedMessage
}

func (f *fakeIndexer) BulkIndex(_ context.Context, docs []storage.ClassifiedMessage) error {
	f.docs = append(f.docs, docs...)
	return nil
}

type testEnv struct {
	router  *gin.Engine
	history *fakeHistory
	indexer *fakeIndexer
}

func newEnv(t *testing.T, opts api.RouteOptions, withHistory bool) *testEnv {
	t.Helper()

	c, err := classifier.New(classifier.Config{}, patterns.Default(), nil, nil, nil)
	require.NoError(t, err)

	env := &testEnv{indexer: &fakeIndexer{}}
	deps := api.Dependencies{
		Classifier:      c,
		Indexer:         env.indexer,
		Health:          api.HealthInfo{Service: "hackai", Version: "test", Mode: "rules"},
		HistoryLimit:    50,
		MaxHistoryLimit: 500,
		Logger:          logger.NewNop(),
	}
	if withHistory {
		env.history = &fakeHistory{}
		deps.History = env.history
	}

	env.router = api.NewRouter(false, logger.NewNop())
	api.SetupRoutes(env.router, api.NewHandler(deps), opts)
	return env
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	env := newEnv(t, api.RouteOptions{}, true)

	testCases := []struct {
		name     string
		message  string
		crime    bool
		behavior domain.Behavior
		emotion  string
	}{
		{"death threat", "I will kill you", true, domain.BehaviorThreatening, "Fearful"},
		{"stalking", "I've been outside your place", true, domain.BehaviorStalking, "Fearful"},
		{"escalating", "where are you? answer me!", false, domain.BehaviorEscalating, "Concerned"},
		{"normal", "see you at lunch", false, domain.BehaviorNormal, "Neutral"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			w := doJSON(t, env.router, http.MethodPost, "/analyze", api.AnalyzeRequest{Message: tc.message}, nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var got domain.Analysis
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tc.crime, got.IsCrime)
			assert.Equal(t, tc.behavior, got.PerpetratorBehavior)
			assert.Equal(t, tc.emotion, got.ReceiverEmotion)
			assert.GreaterOrEqual(t, got.SeverityScore, 1)
		})
	}
}

func TestAnalyze_BadRequests(t *testing.T) {
	t.Parallel()

	env := newEnv(t, api.RouteOptions{}, false)

	w := doJSON(t, env.router, http.MethodPost, "/analyze", api.AnalyzeRequest{Message: "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "empty")

	w = doJSON(t, env.router, http.MethodPost, "/analyze", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyze_RateLimited(t *testing.T) {
	t.Parallel()

	env := newEnv(t, api.RouteOptions{RequestsPerSecond: 0.001, Burst: 1}, false)

	first := doJSON(t, env.router, http.MethodPost, "/analyze", api.AnalyzeRequest{Message: "hi"}, nil)
	assert.Equal(t, http.StatusOK, first.Code)

	second := doJSON(t, env.router, http.MethodPost, "/analyze", api.AnalyzeRequest{Message: "hi"}, nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
}

func TestClassify_StoresHistory(t *testing.T) {
	t.Parallel()

	env := newEnv(t, api.RouteOptions{}, true)

	w := doJSON(t, env.router, http.MethodPost, "/api/v1/classify", api.MessageRequest{
		TimeStamp:      "2024-03-01 21:15:00",
		UserName:       "Alex",
		NarrativeEntry: "You must not go out tonight",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got api.ClassifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Coercive Control", got.Record.IncidentType)
	assert.Equal(t, "2024-03-01 21:15:00", got.Record.FormattedTimestamp)
	assert.Equal(t, domain.SourceRule, got.Source)

	require.Len(t, env.history.entries, 1)
	assert.Equal(t, "Alex", env.history.entries[0].Sender)
	assert.Empty(t, env.history.entries[0].BatchID)
}

func TestClassify_HistoryFailureDoesNotFailRequest(t *testing.T) {
	t.Parallel()

	env := newEnv(t, api.RouteOptions{}, true)
	env.history.err = errors.New("database is down")

	w := doJSON(t, env.router, http.MethodPost, "/api/v1/classify", api.MessageRequest{
		UserName: "Alex", NarrativeEntry: "hello",
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClassifyBatch(t *testing.T) {
	t.Parallel()

	env := newEnv(t, api.RouteOptions{}, true)

	req := api.BatchRequest{Messages: []api.MessageRequest{
		{TimeStamp: "2024-03-01 10:00:00", UserName: "Alex", NarrativeEntry: "I will kill you"},
		{TimeStamp: "2024-03-01 11:00:00", UserName: "Alex", NarrativeEntry: ""},
		{TimeStamp: "2024-03-01 12:00:00", UserName: "Sam", NarrativeEntry: "movie night?"},
	}}
	w := doJSON(t, env.router, http.MethodPost, "/api/v1/classify/batch", req, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got api.BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.NotEmpty(t, got.BatchID)
	require.Len(t, got.Records, 2)
	assert.Equal(t, "Death Threat", got.Records[0].IncidentType)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, 1, got.Errors[0].Index)

	assert.Equal(t, 2, got.Summary.TotalMessages)
	assert.Equal(t, 1, got.Summary.Failed)
	assert.Equal(t, 1, got.Summary.PotentialCrimes)

	require.Len(t, env.history.entries, 2)
	assert.Equal(t, got.BatchID, env.history.entries[0].BatchID)
	require.Len(t, env.indexer.docs, 2)
	assert.Equal(t, got.BatchID+"-2", env.indexer.docs[1].ID)
}

// waitForDeadline holds each classification until the request context is
// done, then classifies normally.
type waitForDeadline struct {
	next processor.MessageClassifier
}

func (w waitForDeadline) Classify(ctx context.Context, msg domain.Message) (*domain.ClassificationResult, error) {
	<-ctx.Done()
	return w.next.Classify(context.Background(), msg)
}

func TestClassifyBatch_TimeBudget(t *testing.T) {
	t.Parallel()

	c, err := classifier.New(classifier.Config{}, patterns.Default(), nil, nil, nil)
	require.NoError(t, err)

	slow := waitForDeadline{next: c}
	history := &fakeHistory{}
	h := api.NewHandler(api.Dependencies{
		Classifier:   slow,
		Batch:        processor.NewBatchProcessor(slow, 1, logger.NewNop(), nil),
		History:      history,
		BatchTimeout: 50 * time.Millisecond,
		Logger:       logger.NewNop(),
	})
	router := api.NewRouter(false, logger.NewNop())
	api.SetupRoutes(router, h, api.RouteOptions{})

	req := api.BatchRequest{Messages: []api.MessageRequest{
		{UserName: "Alex", NarrativeEntry: "I will kill you"},
		{UserName: "Alex", NarrativeEntry: "where are you right now"},
		{UserName: "Sam", NarrativeEntry: "movie night?"},
	}}
	w := doJSON(t, router, http.MethodPost, "/api/v1/classify/batch", req, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got api.BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.Interrupted)
	require.NotEmpty(t, got.Records)
	assert.Equal(t, "Death Threat", got.Records[0].IncidentType)
	require.NotEmpty(t, got.Errors)
	assert.Len(t, got.Errors, len(req.Messages)-len(got.Records))
	assert.Equal(t, len(req.Messages)-1, got.Errors[len(got.Errors)-1].Index)
	assert.Contains(t, got.Errors[len(got.Errors)-1].Error, "deadline exceeded")
	assert.Len(t, history.entries, len(got.Records))
}

func TestClassifyBatch_Empty(t *testing.T) {
	t.Parallel()

	env := newEnv(t, api.RouteOptions{}, false)

	w := doJSON(t, env.router, http.MethodPost, "/api/v1/classify/batch", api.BatchRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistory(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		query     string
		status    int
		wantLimit int
	}{
		{"default limit", "", http.StatusOK, 50},
		{"explicit limit", "?limit=10", http.StatusOK, 10},
		{"clamped limit", "?limit=10000", http.StatusOK, 500},
		{"invalid limit", "?limit=abc", http.StatusBadRequest, 0},
		{"negative limit", "?limit=-1", http.StatusBadRequest, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			env := newEnv(t, api.RouteOptions{}, true)
			w := doJSON(t, env.router, http.MethodGet, "/api/v1/history"+tc.query, nil, nil)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.wantLimit, env.history.limit)
		})
	}
}

func TestHistory_NotConfigured(t *testing.T) {
	t.Parallel()

	env := newEnv(t, api.RouteOptions{}, false)

	assert.Equal(t, http.StatusServiceUnavailable,
		doJSON(t, env.router, http.MethodGet, "/api/v1/history", nil, nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		doJSON(t, env.router, http.MethodGet, "/api/v1/stats", nil, nil).Code)
}

func TestStats(t *testing.T) {
	t.Parallel()

	env := newEnv(t, api.RouteOptions{}, true)
	doJSON(t, env.router, http.MethodPost, "/analyze", api.AnalyzeRequest{Message: "hello"}, nil)

	w := doJSON(t, env.router, http.MethodGet, "/api/v1/stats", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got database.HistoryStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Total)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	env := newEnv(t, api.RouteOptions{}, false)

	w := doJSON(t, env.router, http.MethodGet, "/health", nil, map[string]string{"X-Request-ID": "req-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "hackai", got["service"])
	assert.Equal(t, "rules", got["mode"])
	assert.Equal(t, false, got["model_loaded"])
}

func TestRequestID_Generated(t *testing.T) {
	t.Parallel()

	env := newEnv(t, api.RouteOptions{}, false)

	w := doJSON(t, env.router, http.MethodGet, "/health", nil, nil)
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	tp := telemetry.NewProviderWithRegistry(prometheus.NewRegistry())
	tp.RecordClassification("rule", "Normal Communication", time.Millisecond)
	env := newEnv(t, api.RouteOptions{Metrics: tp.Handler()}, false)

	w := doJSON(t, env.router, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hackai_classifications_total")
}

func signToken(t *testing.T, secret, issuer string, method jwt.SigningMethod) string {
	t.Helper()
	claims := api.Claims{
		Sub: "analyst",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJWTMiddleware(t *testing.T) {
	t.Parallel()

	env := newEnv(t, api.RouteOptions{JWTSecret: testSecret, JWTIssuer: "hackai"}, true)

	testCases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "other", "hackai", jwt.SigningMethodHS256), http.StatusUnauthorized},
		{"wrong issuer", "Bearer " + signToken(t, testSecret, "someone", jwt.SigningMethodHS256), http.StatusUnauthorized},
		{"valid", "Bearer " + signToken(t, testSecret, "hackai", jwt.SigningMethodHS256), http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			headers := map[string]string{}
			if tc.header != "" {
				headers["Authorization"] = tc.header
			}
			w := doJSON(t, env.router, http.MethodGet, "/api/v1/stats", nil, headers)
			assert.Equal(t, tc.status, w.Code)
		})
	}

	// Public routes stay open.
	assert.Equal(t, http.StatusOK, doJSON(t, env.router, http.MethodGet, "/health", nil, nil).Code)
	assert.Equal(t, http.StatusOK,
		doJSON(t, env.router, http.MethodPost, "/analyze", api.AnalyzeRequest{Message: "hi"}, nil).Code)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		want int
	}{
		{"input", domain.NewEmptyTextError(), http.StatusBadRequest},
		{"unseen label", &domain.UnseenLabelError{Target: "incident_type", Label: "x"}, http.StatusUnprocessableEntity},
		{"wrapped input", errors.Join(errors.New("ctx"), domain.NewEmptyTextError()), http.StatusBadRequest},
		{"other", errors.New("boom"), http.StatusInternalServerError},
		{"no predictor", classifier.ErrNoPredictor, http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, api.StatusFor(tc.err))
		})
	}
}
