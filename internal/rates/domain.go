// Package rates resolves official conversion rates from foreign currencies to
// the local currency. Snapshots are reference data maintained by an external
// ingestion feed; this package only reads them.
package rates

import (
	"errors"
	"time"
)

// Snapshot holds the official rates published for one date.
// Rates convert one unit of the foreign currency into the local currency.
type Snapshot struct {
	Date  time.Time
	Rates map[string]float64
}

// Rate returns the rate for the given currency code.
func (s Snapshot) Rate(currency string) (float64, bool) {
	rate, ok := s.Rates[currency]
	return rate, ok
}

// ErrNoRate indicates no snapshot exists at or before the requested date.
var ErrNoRate = errors.New("rates: no rate available")
