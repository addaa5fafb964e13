package rates

import (
	"context"
	"time"
)

// Repository encapsulates read access to exchange rate snapshots.
type Repository interface {
	// LatestAt returns the snapshot whose date is the closest one at or
	// before the requested date.
	LatestAt(ctx context.Context, date time.Time) (Snapshot, error)
	// Between returns all snapshots in [from, to] ordered by date ascending,
	// plus the snapshot immediately preceding from when one exists.
	Between(ctx context.Context, from, to time.Time) ([]Snapshot, error)
}
