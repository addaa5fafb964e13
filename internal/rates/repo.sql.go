package rates

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the Postgres-backed snapshot repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) LatestAt(ctx context.Context, date time.Time) (Snapshot, error) {
	var snapshotDate time.Time
	err := r.db.QueryRow(ctx,
		`SELECT rate_date FROM exchange_rates WHERE rate_date <= $1 ORDER BY rate_date DESC LIMIT 1`,
		date).Scan(&snapshotDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrNoRate
		}
		return Snapshot{}, err
	}
	rows, err := r.db.Query(ctx,
		`SELECT currency, rate FROM exchange_rates WHERE rate_date = $1 ORDER BY currency ASC`,
		snapshotDate)
	if err != nil {
		return Snapshot{}, err
	}
	defer rows.Close()
	snap := Snapshot{Date: snapshotDate, Rates: make(map[string]float64)}
	for rows.Next() {
		var currency string
		var rate float64
		if err := rows.Scan(&currency, &rate); err != nil {
			return Snapshot{}, err
		}
		snap.Rates[currency] = rate
	}
	return snap, rows.Err()
}

func (r *repository) Between(ctx context.Context, from, to time.Time) ([]Snapshot, error) {
	// The preceding snapshot is included so callers can always answer
	// "latest known rate as of X" even when X predates the first in-range row.
	rows, err := r.db.Query(ctx, `
SELECT rate_date, currency, rate FROM exchange_rates
WHERE rate_date BETWEEN $1 AND $2
   OR rate_date = (SELECT MAX(rate_date) FROM exchange_rates WHERE rate_date < $1)
ORDER BY rate_date ASC, currency ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var snaps []Snapshot
	for rows.Next() {
		var date time.Time
		var currency string
		var rate float64
		if err := rows.Scan(&date, &currency, &rate); err != nil {
			return nil, err
		}
		if len(snaps) == 0 || !snaps[len(snaps)-1].Date.Equal(date) {
			snaps = append(snaps, Snapshot{Date: date, Rates: make(map[string]float64)})
		}
		snaps[len(snaps)-1].Rates[currency] = rate
	}
	return snaps, rows.Err()
}
