package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/donation-matrix-api/internal/models"
)

func newMatrixRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

var slotRowColumns = []string{"id", "level", "position", "participant_id", "is_receiver", "donations_received", "total_received",
	"donations_required", "level_completed", "level_completed_at", "passed_participant_ids", "created_at", "updated_at"}

func TestQueueSlotRepositorySlotsByLevel(t *testing.T) {
	db, mock, cleanup := newMatrixRepoMock(t)
	defer cleanup()
	repo := NewQueueSlotRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(slotRowColumns).
		AddRow("slot-1", 1, 1, "user-1", false, 2, "200.00", 3, false, nil, "{}", now, now).
		AddRow("slot-2", 1, 2, nil, false, 0, "0", 3, false, nil, "{user-9}", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM queue_slots WHERE level = $1 ORDER BY position ASC")).
		WithArgs(1).
		WillReturnRows(rows)

	slots, err := repo.SlotsByLevel(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.True(t, slots[0].HeldBy("user-1"))
	assert.True(t, slots[0].TotalReceived.Equal(decimal.NewFromInt(200)))
	assert.False(t, slots[1].Occupied())
	assert.Equal(t, pq.StringArray{"user-9"}, slots[1].PassedParticipantIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueSlotRepositorySlotByParticipantNotFound(t *testing.T) {
	db, mock, cleanup := newMatrixRepoMock(t)
	defer cleanup()
	repo := NewQueueSlotRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM queue_slots WHERE participant_id = $1 AND level = $2")).
		WithArgs("user-1", 2).
		WillReturnError(sql.ErrNoRows)

	slot, err := repo.SlotByParticipant(context.Background(), "user-1", 2)
	assert.Nil(t, slot)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestQueueSlotRepositoryInsertSlot(t *testing.T) {
	db, mock, cleanup := newMatrixRepoMock(t)
	defer cleanup()
	repo := NewQueueSlotRepository(db)

	participant := "user-1"
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO queue_slots")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	slot := &models.QueueSlot{Level: 2, Position: 7, ParticipantID: &participant, DonationsRequired: 18, TotalReceived: decimal.Zero}
	require.NoError(t, repo.InsertSlot(context.Background(), slot))
	assert.NotEmpty(t, slot.ID)
	assert.NotNil(t, slot.PassedParticipantIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueSlotRepositoryAssignParticipantTaken(t *testing.T) {
	db, mock, cleanup := newMatrixRepoMock(t)
	defer cleanup()
	repo := NewQueueSlotRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND participant_id IS NULL")).
		WithArgs("slot-1", "user-1", 18, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AssignParticipant(context.Background(), "slot-1", "user-1", 18)
	assert.ErrorIs(t, err, ErrSlotTaken)
}

func TestQueueSlotRepositoryMarkLevelCompletedOnce(t *testing.T) {
	db, mock, cleanup := newMatrixRepoMock(t)
	defer cleanup()
	repo := NewQueueSlotRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND level_completed = FALSE")).
		WithArgs("slot-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND level_completed = FALSE")).
		WithArgs("slot-1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := repo.MarkLevelCompleted(context.Background(), "slot-1", at)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := repo.MarkLevelCompleted(context.Background(), "slot-1", at)
	require.NoError(t, err)
	assert.False(t, second)
}

func TestQueueSlotRepositoryClearParticipant(t *testing.T) {
	db, mock, cleanup := newMatrixRepoMock(t)
	defer cleanup()
	repo := NewQueueSlotRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("array_append(passed_participant_ids, participant_id)")).
		WithArgs("slot-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ClearParticipant(context.Background(), "slot-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueSlotRepositorySetPositions(t *testing.T) {
	db, mock, cleanup := newMatrixRepoMock(t)
	defer cleanup()
	repo := NewQueueSlotRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("SET position = -position - 1")).
		WithArgs(1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE queue_slots SET position = $3")).
		WithArgs(1, "slot-a", 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE queue_slots SET position = $3")).
		WithArgs(1, "slot-b", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetPositions(context.Background(), 1, []models.SlotPosition{{SlotID: "slot-a", Position: 2}, {SlotID: "slot-b", Position: 1}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueSlotRepositoryQueueStats(t *testing.T) {
	db, mock, cleanup := newMatrixRepoMock(t)
	defer cleanup()
	repo := NewQueueSlotRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("COUNT(participant_id) AS filled_slots")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"total_slots", "filled_slots", "completed_slots"}).AddRow(10, 8, 3))

	stats, err := repo.QueueStats(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Level)
	assert.Equal(t, 10, stats.TotalSlots)
	assert.Equal(t, 8, stats.FilledSlots)
	assert.Equal(t, 3, stats.CompletedSlots)
}
