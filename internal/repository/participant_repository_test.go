package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticipantRepositoryGetCurrentLevel(t *testing.T) {
	db, mock, cleanup := newMatrixRepoMock(t)
	defer cleanup()
	repo := NewParticipantRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT current_level FROM participants WHERE id = $1")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"current_level"}).AddRow(2))

	level, err := repo.GetCurrentLevel(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, level)
}

func TestParticipantRepositorySetCurrentLevelNeverLowers(t *testing.T) {
	db, mock, cleanup := newMatrixRepoMock(t)
	defer cleanup()
	repo := NewParticipantRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND current_level < $2")).
		WithArgs("user-1", 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetCurrentLevel(context.Background(), "user-1", 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipantRepositoryParticipantsByIDs(t *testing.T) {
	db, mock, cleanup := newMatrixRepoMock(t)
	defer cleanup()
	repo := NewParticipantRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM participants WHERE id IN ($1, $2)")).
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"id", "current_level", "can_reenter", "n3_completed_at", "created_at", "updated_at"}).
			AddRow("a", 1, false, nil, now, now).
			AddRow("b", 2, false, nil, now, now))

	participants, err := repo.ParticipantsByIDs(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, 2, participants[1].CurrentLevel)

	empty, err := repo.ParticipantsByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestParticipantRepositoryEnsureParticipant(t *testing.T) {
	db, mock, cleanup := newMatrixRepoMock(t)
	defer cleanup()
	repo := NewParticipantRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO NOTHING")).
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureParticipant(context.Background(), "user-1"))
}
