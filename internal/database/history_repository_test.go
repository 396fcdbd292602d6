package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mounikasaka1/hackai/internal/config"
	"github.com/mounikasaka1/hackai/internal/database"
	"github.com/mounikasaka1/hackai/internal/domain"
	"github.com/mounikasaka1/hackai/internal/logger"
)

func newMock(t *testing.T) (*database.HistoryRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return database.NewHistoryRepository(sqlx.NewDb(db, "postgres")), mock
}

func sampleEntry() *database.HistoryEntry {
	msg := domain.NewMessage("2024-03-01 21:15:00", "Alex", "where are you")
	return database.NewHistoryEntry("batch-1", msg, &domain.ClassificationResult{
		IncidentType:   domain.CategoryLocationMonitoring,
		EmotionalState: domain.EmotionConcerned,
		Severity:       2,
		PotentialCrime: domain.CrimeNo,
		Confidence:     85,
		Source:         domain.SourceRule,
	})
}

func TestNewHistoryEntry(t *testing.T) {
	t.Parallel()

	e := sampleEntry()
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "Location Monitoring", e.IncidentType)
	assert.True(t, e.MessageTime.Valid)
	assert.False(t, e.ClassifiedAt.IsZero())
	assert.Equal(t, "rule", e.Source)
}

func TestHistoryRepository_Create(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO classification_history`).
		WithArgs(sqlmock.AnyArg(), "batch-1", "Alex", "where are you", sqlmock.AnyArg(),
			"Location Monitoring", "Concerned", 2, "N", 85.0, "rule", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), sampleEntry()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepository_CreateBatch_RollsBack(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO classification_history`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO classification_history`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.CreateBatch(context.Background(), []*database.HistoryEntry{sampleEntry(), sampleEntry()})
	require.ErrorContains(t, err, "disk full")
	require.NoError(t, mock.ExpectationsWereMet())

	require.NoError(t, repo.CreateBatch(context.Background(), nil))
}

func TestHistoryRepository_List(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	now := time.Date(2024, 3, 1, 21, 15, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "batch_id", "sender", "message_text", "message_time", "incident_type",
		"emotional_state", "severity", "potential_crime", "confidence", "source", "classified_at",
	}).
		AddRow("a", "", "Alex", "I will hurt you", nil, "Death Threat", "Fearful", 5, "Y", 100.0, "rule", now).
		AddRow("b", "", "Sanya", "lunch?", now, "Friendly", "Neutral", 1, "N", 90.0, "rule", now.Add(-time.Hour))

	mock.ExpectQuery(`(?s)SELECT id, batch_id, sender.*LIMIT \$1`).WithArgs(10).WillReturnRows(rows)

	got, err := repo.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Death Threat", got[0].IncidentType)
	assert.False(t, got[0].MessageTime.Valid)
	assert.True(t, got[1].MessageTime.Valid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepository_Stats(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	mock.ExpectQuery(`SELECT\s+COUNT\(\*\) AS total`).
		WillReturnRows(sqlmock.NewRows([]string{"total", "crimes", "avg_severity"}).AddRow(3, 1, 2.6666))
	mock.ExpectQuery(`SELECT incident_type, COUNT\(\*\) AS count`).
		WillReturnRows(sqlmock.NewRows([]string{"incident_type", "count"}).
			AddRow("Normal Communication", 2).
			AddRow("Death Threat", 1))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.PotentialCrimes)
	assert.InDelta(t, 2.67, stats.AverageSeverity, 1e-9)
	assert.Equal(t, map[string]int{"Normal Communication": 2, "Death Threat": 1}, stats.ByIncidentType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_MigrateAndRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping sqlite integration test in short mode")
	}

	cfg := config.Default().Database
	cfg.Driver = database.DriverSQLite
	cfg.Path = filepath.Join(t.TempDir(), "history.db")

	ctx := context.Background()
	db, err := database.Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logger.NewNop()
	require.NoError(t, database.MigrateUp(db, log))
	require.NoError(t, database.MigrateUp(db, log)) // no change

	version, dirty, err := database.MigrationVersion(db)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	repo := database.NewHistoryRepository(db)
	first := sampleEntry()
	first.ClassifiedAt = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	second := sampleEntry()
	second.ClassifiedAt = first.ClassifiedAt.Add(time.Minute)
	second.IncidentType = "Death Threat"
	second.Severity = 5
	second.PotentialCrime = domain.CrimeYes
	require.NoError(t, repo.CreateBatch(ctx, []*database.HistoryEntry{first, second}))

	got, err := repo.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, second.ID, got[0].ID)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.PotentialCrimes)
	assert.InDelta(t, 3.5, stats.AverageSeverity, 1e-9)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	cfg := config.Default().Database
	cfg.Driver = "mysql"
	_, err := database.Open(context.Background(), cfg)
	require.Error(t, err)
}
