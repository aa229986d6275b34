package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godilite/cs-eval-dashboard/internal/repository/models"
)

func newMockRepo(t *testing.T) (*EvaluationRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewEvaluationRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestQueryEvaluations_StoreError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .* FROM cs_evaluation WHERE agent_name = \? ORDER BY created_at DESC`).
		WithArgs("Sarah", 10, 0).
		WillReturnError(errors.New("connection refused"))

	rows, err := repo.QueryEvaluations(context.Background(), models.EvaluationQuery{AgentName: "Sarah", Limit: 10})

	assert.Nil(t, rows)
	assert.ErrorContains(t, err, "query QueryEvaluations")
	assert.ErrorContains(t, err, "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountEvaluations_StoreError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM cs_evaluation`).
		WillReturnError(errors.New("timeout"))

	count, err := repo.CountEvaluations(context.Background(), "")

	assert.Zero(t, count)
	assert.ErrorContains(t, err, "query CountEvaluations")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupCustomerNames_Rows(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"room_id", "sender_name"}).
		AddRow("T1", "Budi").
		AddRow("T1", "Someone Else").
		AddRow("T2", "").
		AddRow(nil, "Orphan").
		AddRow("T3", "Ayu")

	mock.ExpectQuery(`SELECT room_id, sender_name\s+FROM cs_messages`).
		WithArgs("T1", "T2", "T3").
		WillReturnRows(rows)

	names, err := repo.LookupCustomerNames(context.Background(), []string{"T1", "T2", "T3"})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"T1": "Budi", "T3": "Ayu"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupCustomerNames_StoreError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`FROM cs_messages`).WillReturnError(errors.New("relation does not exist"))

	names, err := repo.LookupCustomerNames(context.Background(), []string{"T1"})

	assert.Nil(t, names)
	assert.ErrorContains(t, err, "query LookupCustomerNames")
	assert.NoError(t, mock.ExpectationsWereMet())
}
