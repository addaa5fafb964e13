package rates

import (
	"context"
	"fmt"
	"time"
)

// Resolver answers rate lookups against the snapshot repository, consulting
// the cache first. Construct one at process start and pass it by reference.
type Resolver struct {
	repo  Repository
	cache *Cache
}

// NewResolver constructs a Resolver. The cache may be nil.
func NewResolver(repo Repository, cache *Cache) *Resolver {
	return &Resolver{repo: repo, cache: cache}
}

// RatesAt returns the snapshot closest at or before the given date.
func (r *Resolver) RatesAt(ctx context.Context, date time.Time) (Snapshot, error) {
	if r == nil || r.repo == nil {
		return Snapshot{}, fmt.Errorf("rates: resolver not initialised")
	}
	day := truncateToDay(date)
	if snap, ok := r.cache.Get(ctx, day); ok {
		return snap, nil
	}
	snap, err := r.repo.LatestAt(ctx, day)
	if err != nil {
		return Snapshot{}, err
	}
	r.cache.Set(ctx, day, snap)
	return snap, nil
}

// RatesBetween returns ordered snapshots covering [from, to], including the
// snapshot immediately preceding from.
func (r *Resolver) RatesBetween(ctx context.Context, from, to time.Time) ([]Snapshot, error) {
	if r == nil || r.repo == nil {
		return nil, fmt.Errorf("rates: resolver not initialised")
	}
	if to.Before(from) {
		return nil, fmt.Errorf("rates: range end %s precedes start %s", to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	return r.repo.Between(ctx, truncateToDay(from), truncateToDay(to))
}

// Table builds an in-memory lookup from the snapshots covering the given
// range. A generation cycle fetches its whole date span once and threads the
// table through the builders instead of issuing per-date lookups.
func (r *Resolver) Table(ctx context.Context, from, to time.Time) (Table, error) {
	snaps, err := r.RatesBetween(ctx, from, to)
	if err != nil {
		return Table{}, err
	}
	return Table{snapshots: snaps}, nil
}

// Table is a read-only, in-memory view over resolved snapshots.
type Table struct {
	snapshots []Snapshot
}

// NewTable builds a table directly from snapshots, ordered by date ascending.
func NewTable(snapshots []Snapshot) Table {
	return Table{snapshots: snapshots}
}

// RateAt returns the conversion rate for a currency effective on the given
// date, resolved to the most recent snapshot at or before it.
func (t Table) RateAt(date time.Time, currency string) (float64, error) {
	day := truncateToDay(date)
	for i := len(t.snapshots) - 1; i >= 0; i-- {
		if t.snapshots[i].Date.After(day) {
			continue
		}
		if rate, ok := t.snapshots[i].Rate(currency); ok {
			return rate, nil
		}
		return 0, fmt.Errorf("%w: %s on %s", ErrNoRate, currency, day.Format(time.DateOnly))
	}
	return 0, fmt.Errorf("%w: %s on %s", ErrNoRate, currency, day.Format(time.DateOnly))
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
