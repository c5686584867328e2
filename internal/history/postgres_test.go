package history

import (
	"bytes"
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/framingham-risk-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var predictionColumns = []string{
	"id", "patient_id", "test_id", "request_id", "model", "shape", "input",
	"probability", "label", "low_confidence", "created_at",
}

func setupMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestNewPostgresStore_NilDB(t *testing.T) {
	_, err := NewPostgresStore(nil)

	assert.Error(t, err)
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := setupMockStore(t)
	defer store.Close()

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO predictions")).
		WithArgs(sqlmock.AnyArg(), "patient-1", "test-patient-1", "req-1", "framingham_cvd_2008",
			"current", `{"sex":"male","age":60}`, 0.52, "high", false, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	p := samplePrediction("patient-1", "framingham_cvd_2008", "high", 0.52)
	err := store.Save(context.Background(), p)

	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, created, p.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := setupMockStore(t)
	defer store.Close()

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM predictions WHERE id = $1")).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows(predictionColumns).AddRow(
			"abc", "p1", "t1", "r1", "framingham_dm_2007", "legacy", `{"bmi":31}`,
			0.107, "intermediate", true, created))

	p, err := store.Get(context.Background(), "abc")

	require.NoError(t, err)
	assert.Equal(t, "legacy", p.Shape)
	assert.True(t, p.LowConfidence)
	assert.Equal(t, `{"bmi":31}`, string(p.Input))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	store, mock := setupMockStore(t)
	defer store.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM predictions WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresStore_ListFilter(t *testing.T) {
	store, mock := setupMockStore(t)
	defer store.Close()

	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM predictions WHERE model = $1 AND label = $2 AND created_at >= $3 ORDER BY created_at DESC, id LIMIT $4 OFFSET $5")).
		WithArgs("framingham_cvd_2008", "high", since, 10, 20).
		WillReturnRows(sqlmock.NewRows(predictionColumns).
			AddRow("1", "", "", "", "framingham_cvd_2008", "current", "{}", 0.4, "high", false, since).
			AddRow("2", "", "", "", "framingham_cvd_2008", "current", "{}", 0.3, "high", false, since))

	list, err := store.List(context.Background(), domain.PredictionFilter{
		Model: "framingham_cvd_2008", Label: "high", Since: since, Limit: 10, Offset: 20,
	})

	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountDefaultsToAll(t *testing.T) {
	store, mock := setupMockStore(t)
	defer store.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM predictions")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := store.Count(context.Background(), domain.PredictionFilter{})

	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := setupMockStore(t)
	defer store.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM predictions WHERE id = $1")).
		WithArgs("abc").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM predictions WHERE id = $1")).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, store.Delete(context.Background(), "abc"))
	assert.ErrorIs(t, store.Delete(context.Background(), "gone"), domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportSkipsExisting(t *testing.T) {
	store, mock := setupMockStore(t)
	defer store.Close()

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM predictions WHERE id = $1")).
		WithArgs("known").
		WillReturnRows(sqlmock.NewRows(predictionColumns).AddRow(
			"known", "", "", "", "framingham_dm_2007", "current", "{}", 0.1, "intermediate", false, created))
	mock.ExpectQuery(regexp.QuoteMeta("FROM predictions WHERE id = $1")).
		WithArgs("new").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO predictions")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	doc := `{"version":"1.0","count":2,"predictions":[
		{"id":"known","model":"framingham_dm_2007","input":{},"probability":0.1,"label":"intermediate"},
		{"id":"new","model":"framingham_dm_2007","input":{},"probability":0.2,"label":"high"}
	]}`

	imported, skipped, err := store.ImportJSON(context.Background(), bytes.NewReader([]byte(doc)))

	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}
