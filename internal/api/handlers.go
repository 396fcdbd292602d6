// Package api exposes classification over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mounikasaka1/hackai/internal/database"
	"github.com/mounikasaka1/hackai/internal/domain"
	"github.com/mounikasaka1/hackai/internal/logger"
	"github.com/mounikasaka1/hackai/internal/processor"
	"github.com/mounikasaka1/hackai/internal/storage"
)

const maxBatchSize = 1000

// HistoryStore persists and reads classification history.
type HistoryStore interface {
	Create(ctx context.Context, e *database.HistoryEntry) error
	CreateBatch(ctx context.Context, entries []*database.HistoryEntry) error
	List(ctx context.Context, limit int) ([]database.HistoryEntry, error)
	Stats(ctx context.Context) (*database.HistoryStats, error)
}

// BatchIndexer writes batch results to a search index.
type BatchIndexer interface {
	BulkIndex(ctx context.Context, docs []storage.ClassifiedMessage) error
}

// HealthInfo is reported by GET /health.
type HealthInfo struct {
	Service     string `json:"service"`
	Version     string `json:"version"`
	Mode        string `json:"mode"`
	ModelLoaded bool   `json:"model_loaded"`
}

// Dependencies wires a Handler. History and Indexer are optional.
type Dependencies struct {
	Classifier      processor.MessageClassifier
	Batch           *processor.BatchProcessor
	History         HistoryStore
	Indexer         BatchIndexer
	Health          HealthInfo
	BatchTimeout    time.Duration
	HistoryLimit    int
	MaxHistoryLimit int
	Logger          logger.Logger
}

// Handler serves the HTTP endpoints.
type Handler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewHandler creates a Handler.
func NewHandler(deps Dependencies) *Handler {
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	if deps.Batch == nil {
		deps.Batch = processor.NewBatchProcessor(deps.Classifier, 0, log, nil)
	}
	return &Handler{deps: deps, logger: log}
}

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	Message   string `json:"message"`
	Sender    string `json:"sender,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// MessageRequest is one message in the classify endpoints.
type MessageRequest struct {
	TimeStamp      string `json:"time_stamp"`
	UserName       string `json:"user_name"`
	NarrativeEntry string `json:"narrative_entry"`
}

func (m MessageRequest) message() domain.Message {
	return domain.NewMessage(m.TimeStamp, m.UserName, m.NarrativeEntry)
}

// ClassifyResponse is the body returned by POST /api/v1/classify.
type ClassifyResponse struct {
	Record domain.Record `json:"record"`
	Source domain.Source `json:"source"`
}

// BatchRequest is the body of POST /api/v1/classify/batch.
type BatchRequest struct {
	Messages []MessageRequest `json:"messages" binding:"required,min=1"`
}

// ItemError reports a message of a batch that could not be classified.
type ItemError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchResponse is the body returned by POST /api/v1/classify/batch.
type BatchResponse struct {
	BatchID    string            `json:"batch_id"`
	Records    []domain.Record   `json:"records"`
	Errors     []ItemError       `json:"errors,omitempty"`
	Summary    processor.Summary `json:"summary"`
	DurationMS int64             `json:"duration_ms"`
	// Interrupted is set when the batch time budget ran out. Records holds
	// what finished; the rest are listed in Errors.
	Interrupted bool `json:"interrupted,omitempty"`
}

// Analyze handles POST /analyze.
func (h *Handler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg := domain.NewMessage(req.Timestamp, req.Sender, req.Message)
	result, err := h.deps.Classifier.Classify(c.Request.Context(), msg)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.record(c.Request.Context(), msg, result)

	c.JSON(http.StatusOK, domain.ToAnalysis(result, req.Message))
}

// Classify handles POST /api/v1/classify.
func (h *Handler) Classify(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg := req.message()
	result, err := h.deps.Classifier.Classify(c.Request.Context(), msg)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.record(c.Request.Context(), msg, result)

	c.JSON(http.StatusOK, ClassifyResponse{
		Record: domain.ToRecord(msg, result),
		Source: result.Source,
	})
}

// ClassifyBatch handles POST /api/v1/classify/batch.
func (h *Handler) ClassifyBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Messages) > maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "batch exceeds " + strconv.Itoa(maxBatchSize) + " messages",
		})
		return
	}

	msgs := make([]domain.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = m.message()
	}

	ctx := c.Request.Context()
	if h.deps.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.deps.BatchTimeout)
		defer cancel()
	}

	batch, err := h.deps.Batch.Process(ctx, msgs)
	interrupted := processor.Interrupted(batch, err)
	if err != nil && !interrupted {
		h.fail(c, err)
		return
	}
	if interrupted {
		logger.FromContext(c.Request.Context()).Warn("Batch interrupted, returning partial results",
			logger.String("batch_id", batch.ID),
			logger.Int("failed", batch.Failed()),
			logger.Error(err),
		)
	}

	h.recordBatch(c.Request.Context(), batch)

	resp := BatchResponse{
		BatchID:     batch.ID,
		Records:     batch.Records(),
		Summary:     processor.Summarize(batch.Items),
		DurationMS:  batch.Duration.Milliseconds(),
		Interrupted: interrupted,
	}
	for _, it := range batch.Items {
		if it.Err != nil {
			resp.Errors = append(resp.Errors, ItemError{Index: it.Index, Error: it.Err.Error()})
		}
	}
	c.JSON(http.StatusOK, resp)
}

// History handles GET /api/v1/history.
func (h *Handler) History(c *gin.Context) {
	if h.deps.History == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history store is not configured"})
		return
	}

	limit, err := h.parseLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries, err := h.deps.History.List(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// Stats handles GET /api/v1/stats.
func (h *Handler) Stats(c *gin.Context) {
	if h.deps.History == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history store is not configured"})
		return
	}

	stats, err := h.deps.History.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"service":      h.deps.Health.Service,
		"version":      h.deps.Health.Version,
		"mode":         h.deps.Health.Mode,
		"model_loaded": h.deps.Health.ModelLoaded,
	})
}

var errInvalidLimit = errors.New("limit must be a positive integer")

func (h *Handler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.deps.HistoryLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errInvalidLimit
	}
	if h.deps.MaxHistoryLimit > 0 && n > h.deps.MaxHistoryLimit {
		n = h.deps.MaxHistoryLimit
	}
	return n, nil
}

// record stores a single classification. Storage failures are logged and do
// not fail the request.
func (h *Handler) record(ctx context.Context, msg domain.Message, result *domain.ClassificationResult) {
	if h.deps.History == nil {
		return
	}
	if err := h.deps.History.Create(ctx, database.NewHistoryEntry("", msg, result)); err != nil {
		logger.FromContext(ctx).Warn("Failed to store classification history", logger.Error(err))
	}
}

func (h *Handler) recordBatch(ctx context.Context, batch *processor.Batch) {
	log := logger.FromContext(ctx)

	if h.deps.History != nil {
		entries := make([]*database.HistoryEntry, 0, len(batch.Items))
		for _, it := range batch.Items {
			if it.Err == nil && it.Result != nil {
				entries = append(entries, database.NewHistoryEntry(batch.ID, it.Message, it.Result))
			}
		}
		if err := h.deps.History.CreateBatch(ctx, entries); err != nil {
			log.Warn("Failed to store batch history",
				logger.String("batch_id", batch.ID),
				logger.Error(err),
			)
		}
	}

	if h.deps.Indexer != nil {
		if err := h.deps.Indexer.BulkIndex(ctx, storage.BatchDocuments(batch)); err != nil {
			log.Warn("Failed to index batch",
				logger.String("batch_id", batch.ID),
				logger.Error(err),
			)
		}
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// StatusFor maps a classification error to an HTTP status.
func StatusFor(err error) int {
	var inputErr *domain.InputError
	var unseenErr *domain.UnseenLabelError
	switch {
	case errors.As(err, &inputErr):
		return http.StatusBadRequest
	case errors.As(err, &unseenErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
