package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"railrisk/internal/types"
)

// PrecedentRepository reads curated historical precedents from
// historical_precedents. Rows are written by the analysts' tooling, not by
// this service.
type PrecedentRepository struct {
	db DBTX
}

// NewPrecedentRepository creates a new PrecedentRepository.
func NewPrecedentRepository(db DBTX) *PrecedentRepository {
	return &PrecedentRepository{db: db}
}

// Latest returns the most recently recorded active precedent for the route,
// or nil when none exists.
func (r *PrecedentRepository) Latest(ctx context.Context, routeID string) (*types.HistoricalMatch, error) {
	var (
		m        types.HistoricalMatch
		scale    string
		tendency string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, label, resulted_in_suspension, confidence, typical_duration_hours,
			scale, recovery_tendency, advice
		 FROM historical_precedents
		 WHERE route_id = $1 AND active = TRUE
		 ORDER BY recorded_at DESC
		 LIMIT 1`,
		routeID,
	).Scan(
		&m.ID,
		&m.Label,
		&m.ResultedInSuspension,
		&m.Confidence,
		&m.TypicalDurationHours,
		&scale,
		&tendency,
		&m.Advice,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query historical precedent", err)
	}
	m.Scale = types.SuspensionScale(scale)
	m.RecoveryTendency = types.RecoveryTendency(tendency)
	return &m, nil
}
