package rates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeRepo struct {
	snapshots []Snapshot
	calls     int
}

func (f *fakeRepo) LatestAt(ctx context.Context, date time.Time) (Snapshot, error) {
	f.calls++
	for i := len(f.snapshots) - 1; i >= 0; i-- {
		if !f.snapshots[i].Date.After(date) {
			return f.snapshots[i], nil
		}
	}
	return Snapshot{}, ErrNoRate
}

func (f *fakeRepo) Between(ctx context.Context, from, to time.Time) ([]Snapshot, error) {
	f.calls++
	var out []Snapshot
	var preceding *Snapshot
	for i := range f.snapshots {
		snap := f.snapshots[i]
		if snap.Date.Before(from) {
			preceding = &f.snapshots[i]
			continue
		}
		if snap.Date.After(to) {
			break
		}
		out = append(out, snap)
	}
	if preceding != nil {
		out = append([]Snapshot{*preceding}, out...)
	}
	return out, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testSnapshots() []Snapshot {
	return []Snapshot{
		{Date: day(2024, 3, 1), Rates: map[string]float64{"USD": 3.60, "EUR": 3.90}},
		{Date: day(2024, 3, 4), Rates: map[string]float64{"USD": 3.70, "EUR": 3.95}},
		{Date: day(2024, 3, 8), Rates: map[string]float64{"USD": 3.65, "EUR": 3.92}},
	}
}

func TestRatesAtResolvesNearestPrior(t *testing.T) {
	resolver := NewResolver(&fakeRepo{snapshots: testSnapshots()}, nil)

	snap, err := resolver.RatesAt(context.Background(), day(2024, 3, 6))
	if err != nil {
		t.Fatalf("RatesAt: %v", err)
	}
	if !snap.Date.Equal(day(2024, 3, 4)) {
		t.Fatalf("expected snapshot of Mar 4, got %s", snap.Date)
	}
	if rate, _ := snap.Rate("USD"); rate != 3.70 {
		t.Fatalf("expected USD 3.70, got %v", rate)
	}
}

func TestRatesAtNoPriorSnapshot(t *testing.T) {
	resolver := NewResolver(&fakeRepo{snapshots: testSnapshots()}, nil)

	_, err := resolver.RatesAt(context.Background(), day(2024, 2, 1))
	if !errors.Is(err, ErrNoRate) {
		t.Fatalf("expected ErrNoRate, got %v", err)
	}
}

func TestRatesBetweenIncludesPreceding(t *testing.T) {
	resolver := NewResolver(&fakeRepo{snapshots: testSnapshots()}, nil)

	snaps, err := resolver.RatesBetween(context.Background(), day(2024, 3, 3), day(2024, 3, 9))
	if err != nil {
		t.Fatalf("RatesBetween: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots (preceding + 2 in range), got %d", len(snaps))
	}
	if !snaps[0].Date.Equal(day(2024, 3, 1)) {
		t.Fatalf("expected preceding snapshot first, got %s", snaps[0].Date)
	}
}

func TestTableRateAt(t *testing.T) {
	table := NewTable(testSnapshots())

	rate, err := table.RateAt(day(2024, 3, 5), "USD")
	if err != nil {
		t.Fatalf("RateAt: %v", err)
	}
	if rate != 3.70 {
		t.Fatalf("expected 3.70, got %v", rate)
	}

	if _, err := table.RateAt(day(2024, 3, 5), "CHF"); !errors.Is(err, ErrNoRate) {
		t.Fatalf("expected ErrNoRate for unknown currency, got %v", err)
	}
}

func TestResolverUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := &fakeRepo{snapshots: testSnapshots()}
	resolver := NewResolver(repo, NewCache(client, time.Minute))

	for i := 0; i < 3; i++ {
		if _, err := resolver.RatesAt(context.Background(), day(2024, 3, 6)); err != nil {
			t.Fatalf("RatesAt: %v", err)
		}
	}
	if repo.calls != 1 {
		t.Fatalf("expected 1 repository call with warm cache, got %d", repo.calls)
	}
}
