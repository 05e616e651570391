package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"railrisk/internal/types"
)

func TestCrowdReportRepository_Insert(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCrowdReportRepository(db)
	at := time.Date(2026, 1, 20, 7, 30, 0, 0, time.UTC)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), []any{"jr-hokkaido.chitose", "stopped", at}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, repo.Insert(context.Background(), "jr-hokkaido.chitose", types.ReportStopped, at))
	db.AssertExpectations(t)
}

func TestCrowdReportRepository_Aggregate(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCrowdReportRepository(db)
	now := time.Date(2026, 1, 20, 7, 30, 0, 0, time.UTC)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			params := args.Get(2).([]any)
			assert.Equal(t, now.Add(-15*time.Minute), params[1])
			assert.Equal(t, now, params[2])
		}).
		Return(&mockRow{values: []any{4, 1, 2, 0}})

	agg, err := repo.Aggregate(context.Background(), "jr-hokkaido.chitose", now)
	require.NoError(t, err)
	assert.Equal(t, types.CrowdsourcedAggregate{Stopped: 4, Delayed: 1, Crowded: 2}, agg)
	assert.Equal(t, 7, agg.Total())
}

func TestCrowdReportRepository_Aggregate_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCrowdReportRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("timeout")})

	_, err := repo.Aggregate(context.Background(), "jr-hokkaido.chitose", time.Now())
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestCrowdReportRepository_DeleteBefore(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCrowdReportRepository(db)
	cutoff := time.Date(2026, 1, 13, 0, 0, 0, 0, time.UTC)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), []any{cutoff}).
		Return(pgconn.NewCommandTag("DELETE 12"), nil).Once()

	n, err := repo.DeleteBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("conn reset")).Once()
	_, err = repo.DeleteBefore(context.Background(), cutoff)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
