package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mounikasaka1/hackai/internal/domain"
)

// HistoryEntry is one stored classification.
type HistoryEntry struct {
	ID             string       `db:"id"              json:"id"`
	BatchID        string       `db:"batch_id"        json:"batch_id,omitempty"`
	Sender         string       `db:"sender"          json:"sender"`
	Text           string       `db:"message_text"    json:"text"`
	MessageTime    sql.NullTime `db:"message_time"    json:"-"`
	IncidentType   string       `db:"incident_type"   json:"incident_type"`
	EmotionalState string       `db:"emotional_state" json:"emotional_state"`
	Severity       int          `db:"severity"        json:"severity_score"`
	PotentialCrime string       `db:"potential_crime" json:"potential_crime"`
	Confidence     float64      `db:"confidence"      json:"confidence_score"`
	Source         string       `db:"source"          json:"source"`
	ClassifiedAt   time.Time    `db:"classified_at"   json:"classified_at"`
}

// NewHistoryEntry builds an entry for msg and its result.
func NewHistoryEntry(batchID string, msg domain.Message, r *domain.ClassificationResult) *HistoryEntry {
	classifiedAt := r.ClassifiedAt
	if classifiedAt.IsZero() {
		classifiedAt = time.Now().UTC()
	}
	return &HistoryEntry{
		ID:             uuid.NewString(),
		BatchID:        batchID,
		Sender:         msg.SenderID,
		Text:           msg.Text,
		MessageTime:    sql.NullTime{Time: msg.Timestamp, Valid: !msg.Timestamp.IsZero()},
		IncidentType:   r.IncidentType.String(),
		EmotionalState: r.EmotionalState.String(),
		Severity:       r.Severity,
		PotentialCrime: r.PotentialCrime,
		Confidence:     r.Confidence,
		Source:         string(r.Source),
		ClassifiedAt:   classifiedAt,
	}
}

// HistoryStats aggregates the stored history.
type HistoryStats struct {
	Total           int            `json:"total"`
	PotentialCrimes int            `json:"potential_crimes"`
	AverageSeverity float64        `json:"average_severity"`
	ByIncidentType  map[string]int `json:"by_incident_type"`
}

// HistoryRepository persists classification history.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository creates a repository over db.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

const insertHistory = `
	INSERT INTO classification_history (
		id, batch_id, sender, message_text, message_time, incident_type,
		emotional_state, severity, potential_crime, confidence, source, classified_at
	) VALUES (
		:id, :batch_id, :sender, :message_text, :message_time, :incident_type,
		:emotional_state, :severity, :potential_crime, :confidence, :source, :classified_at
	)`

// Create inserts one entry.
func (r *HistoryRepository) Create(ctx context.Context, e *HistoryEntry) error {
	if _, err := r.db.NamedExecContext(ctx, insertHistory, e); err != nil {
		return fmt.Errorf("create classification history: %w", err)
	}
	return nil
}

// CreateBatch inserts entries in one transaction.
func (r *HistoryRepository) CreateBatch(ctx context.Context, entries []*HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range entries {
		if _, err := tx.NamedExecContext(ctx, insertHistory, e); err != nil {
			return fmt.Errorf("create classification history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history transaction: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first.
func (r *HistoryRepository) List(ctx context.Context, limit int) ([]HistoryEntry, error) {
	query := r.db.Rebind(`
		SELECT id, batch_id, sender, message_text, message_time, incident_type,
		       emotional_state, severity, potential_crime, confidence, source, classified_at
		FROM classification_history
		ORDER BY classified_at DESC
		LIMIT ?`)

	entries := []HistoryEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("list classification history: %w", err)
	}
	return entries, nil
}

// Stats aggregates the whole table.
func (r *HistoryRepository) Stats(ctx context.Context) (*HistoryStats, error) {
	var totals struct {
		Total       int     `db:"total"`
		Crimes      int     `db:"crimes"`
		AvgSeverity float64 `db:"avg_severity"`
	}
	err := r.db.GetContext(ctx, &totals, `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN potential_crime = 'Y' THEN 1 ELSE 0 END), 0) AS crimes,
			COALESCE(AVG(severity), 0) AS avg_severity
		FROM classification_history`)
	if err != nil {
		return nil, fmt.Errorf("get classification stats: %w", err)
	}

	var rows []struct {
		IncidentType string `db:"incident_type"`
		Count        int    `db:"count"`
	}
	err = r.db.SelectContext(ctx, &rows, `
		SELECT incident_type, COUNT(*) AS count
		FROM classification_history
		GROUP BY incident_type
		ORDER BY count DESC`)
	if err != nil {
		return nil, fmt.Errorf("get incident type counts: %w", err)
	}

	stats := &HistoryStats{
		Total:           totals.Total,
		PotentialCrimes: totals.Crimes,
		AverageSeverity: math.Round(totals.AvgSeverity*100) / 100,
		ByIncidentType:  make(map[string]int, len(rows)),
	}
	for _, row := range rows {
		stats.ByIncidentType[row.IncidentType] = row.Count
	}
	return stats, nil
}
