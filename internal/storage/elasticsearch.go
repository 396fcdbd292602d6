// Package storage indexes classified messages into Elasticsearch.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/mounikasaka1/hackai/internal/config"
	"github.com/mounikasaka1/hackai/internal/domain"
	"github.com/mounikasaka1/hackai/internal/logger"
	"github.com/mounikasaka1/hackai/internal/processor"
	"github.com/mounikasaka1/hackai/internal/telemetry"
)

const sinkName = "elasticsearch"

// ClassifiedMessage is the indexed document.
type ClassifiedMessage struct {
	ID                 string    `json:"id"`
	BatchID            string    `json:"batch_id,omitempty"`
	TimeStamp          string    `json:"time_stamp,omitempty"`
	UserName           string    `json:"user_name"`
	NarrativeEntry     string    `json:"narrative_entry"`
	IncidentType       string    `json:"incident_type"`
	UserEmotionalState string    `json:"user_emotional_state"`
	SeverityScore      int       `json:"severity_score"`
	PotentialCrime     string    `json:"potential_crime"`
	ConfidenceScore    float64   `json:"confidence_score"`
	FormattedTimestamp string    `json:"formatted_timestamp,omitempty"`
	IndexedAt          time.Time `json:"indexed_at"`
}

// NewClassifiedMessage builds a document from an output record.
func NewClassifiedMessage(id, batchID string, r domain.Record) ClassifiedMessage {
	return ClassifiedMessage{
		ID:                 id,
		BatchID:            batchID,
		TimeStamp:          r.TimeStamp,
		UserName:           r.UserName,
		NarrativeEntry:     r.NarrativeEntry,
		IncidentType:       r.IncidentType,
		UserEmotionalState: r.UserEmotionalState,
		SeverityScore:      r.SeverityScore,
		PotentialCrime:     r.PotentialCrime,
		ConfidenceScore:    r.ConfidenceScore,
		FormattedTimestamp: r.FormattedTimestamp,
		IndexedAt:          time.Now().UTC(),
	}
}

// BatchDocuments converts the successful items of a batch. Document IDs are
// derived from the batch ID and the item position so re-indexing a batch
// overwrites rather than duplicates.
func BatchDocuments(batch *processor.Batch) []ClassifiedMessage {
	docs := make([]ClassifiedMessage, 0, len(batch.Items))
	for _, it := range batch.Items {
		if it.Err != nil || it.Result == nil {
			continue
		}
		id := fmt.Sprintf("%s-%d", batch.ID, it.Index)
		docs = append(docs, NewClassifiedMessage(id, batch.ID, domain.ToRecord(it.Message, it.Result)))
	}
	return docs
}

// indexMapping keeps the label fields as keywords for aggregations.
const indexMapping = `{
  "mappings": {
    "properties": {
      "id":                   {"type": "keyword"},
      "batch_id":             {"type": "keyword"},
      "user_name":            {"type": "keyword"},
      "narrative_entry":      {"type": "text"},
      "incident_type":        {"type": "keyword"},
      "user_emotional_state": {"type": "keyword"},
      "severity_score":       {"type": "integer"},
      "potential_crime":      {"type": "keyword"},
      "confidence_score":     {"type": "float"},
      "time_stamp":           {"type": "keyword"},
      "formatted_timestamp":  {"type": "date", "format": "yyyy-MM-dd HH:mm:ss", "ignore_malformed": true},
      "indexed_at":           {"type": "date"}
    }
  }
}`

// NewClient creates an Elasticsearch client and verifies the connection.
func NewClient(ctx context.Context, cfg config.ElasticsearchConfig) (*es.Client, error) {
	url := cfg.URL
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}

	client, err := es.NewClient(es.Config{
		Addresses:  []string{url},
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	res, err := client.Ping(client.Ping.WithContext(pingCtx))
	if err != nil {
		return nil, fmt.Errorf("ping elasticsearch %s: %w", url, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("ping elasticsearch %s: %s", url, res.Status())
	}

	return client, nil
}

// Indexer writes classified messages to one index.
type Indexer struct {
	client    *es.Client
	index     string
	logger    logger.Logger
	telemetry *telemetry.Provider
}

// NewIndexer creates an Indexer for index.
func NewIndexer(client *es.Client, index string, log logger.Logger, tp *telemetry.Provider) *Indexer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Indexer{client: client, index: index, logger: log, telemetry: tp}
}

// IndexName returns the target index.
func (i *Indexer) IndexName() string { return i.index }

// EnsureIndex creates the index with its mapping if it does not exist.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	res, err := i.client.Indices.Exists([]string{i.index}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", i.index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = i.client.Indices.Create(
		i.index,
		i.client.Indices.Create.WithContext(ctx),
		i.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", i.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("create index %s: %s", i.index, res.String())
	}
	i.logger.Info("Created index", logger.String("index", i.index))
	return nil
}

// Index writes one document.
func (i *Indexer) Index(ctx context.Context, doc ClassifiedMessage) (err error) {
	defer func() { i.telemetry.RecordSinkWrite(sinkName, err) }()

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	res, err := i.client.Index(
		i.index,
		bytes.NewReader(body),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(doc.ID),
	)
	if err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index document: %s", res.String())
	}
	return nil
}

// ErrBulkItems is wrapped when the bulk request succeeded but some items
// were rejected.
var ErrBulkItems = errors.New("bulk items failed")

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

// BulkIndex writes docs in a single bulk request.
func (i *Indexer) BulkIndex(ctx context.Context, docs []ClassifiedMessage) (err error) {
	if len(docs) == 0 {
		return nil
	}
	defer func() { i.telemetry.RecordSinkWrite(sinkName, err) }()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		meta := map[string]any{
			"index": map[string]any{"_index": i.index, "_id": doc.ID},
		}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("encode bulk meta: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode bulk document: %w", err)
		}
	}

	res, err := i.client.Bulk(bytes.NewReader(buf.Bytes()), i.client.Bulk.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk request: %s", res.String())
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if !parsed.Errors {
		i.logger.Debug("Bulk indexed documents",
			logger.String("index", i.index),
			logger.Int("count", len(docs)),
		)
		return nil
	}

	failed := 0
	var first string
	for _, item := range parsed.Items {
		for _, result := range item {
			if result.Error != nil {
				failed++
				if first == "" {
					first = result.Error.Type + ": " + result.Error.Reason
				}
			}
		}
	}
	return fmt.Errorf("%w: %d of %d (%s)", ErrBulkItems, failed, len(docs), first)
}
