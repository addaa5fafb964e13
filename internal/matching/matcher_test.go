package matching

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Urigo/accounter-fullstack-sub017/internal/ledger"
)

func TestAmountConfidenceBoundaries(t *testing.T) {
	cfg := DefaultConfig()
	cases := []struct {
		a, b float64
		want float64
	}{
		{100, 100, 1.0},
		{100, 100.5, 0.9},
		{100, 125, 0.0},
		{0, 0, 1.0},
		{2, 2.5, 0.9},
		{-100, 100, 1.0},
		{0, 5, 0.0},
	}
	for _, tc := range cases {
		got := cfg.AmountConfidence(tc.a, tc.b)
		if got != tc.want {
			t.Fatalf("AmountConfidence(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestAmountConfidenceDecayRegime(t *testing.T) {
	cfg := DefaultConfig()
	// Past the 1-unit plateau the score drops below the decay top and
	// shrinks toward zero at the 20% cutoff.
	justPast := cfg.AmountConfidence(100, 101.5)
	if justPast >= cfg.DecayTop || justPast <= 0 {
		t.Fatalf("expected a decay score in (0, %.1f), got %v", cfg.DecayTop, justPast)
	}
	nearCutoff := cfg.AmountConfidence(100, 119.5)
	if nearCutoff >= justPast || nearCutoff <= 0 {
		t.Fatalf("expected the score to shrink toward the cutoff, got %v then %v", justPast, nearCutoff)
	}
}

func TestAmountConfidenceMonotonic(t *testing.T) {
	cfg := DefaultConfig()
	const docAmount = 250.0
	prev := math.Inf(1)
	for diff := 0.0; diff <= 60; diff += 0.25 {
		score := cfg.AmountConfidence(docAmount+diff, docAmount)
		if score > prev {
			t.Fatalf("confidence increased from %v to %v at diff %v", prev, score, diff)
		}
		prev = score
	}
}

func TestClassify(t *testing.T) {
	tx := []ledger.Transaction{{ID: uuid.New()}}
	invoice := []ledger.Document{{ID: uuid.New(), Type: ledger.DocumentInvoice}}
	proforma := []ledger.Document{{ID: uuid.New(), Type: ledger.DocumentProforma}}

	if got := Classify(tx, invoice); got != StatusMatched {
		t.Fatalf("expected matched, got %s", got)
	}
	if got := Classify(tx, nil); got != StatusTransactionsOnly {
		t.Fatalf("expected transactions-only, got %s", got)
	}
	if got := Classify(nil, invoice); got != StatusDocumentsOnly {
		t.Fatalf("expected documents-only, got %s", got)
	}
	if got := Classify(nil, nil); got != StatusInvalid {
		t.Fatalf("expected invalid, got %s", got)
	}
	// Proforma paperwork does not count toward the document side.
	if got := Classify(tx, proforma); got != StatusTransactionsOnly {
		t.Fatalf("proforma should not count as an accounting document, got %s", got)
	}
}

func TestScoreDocumentCandidatesOrdering(t *testing.T) {
	cfg := DefaultConfig()
	charge := ledger.Charge{ID: uuid.New(), OwnerID: uuid.New()}
	date := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	transactions := []ledger.Transaction{{
		ID:        uuid.New(),
		Amount:    -500,
		Currency:  ledger.CurrencyUSD,
		DebitDate: date,
	}}
	exact := ledger.Document{ID: uuid.New(), Type: ledger.DocumentInvoice, Amount: 500, Date: date}
	near := ledger.Document{ID: uuid.New(), Type: ledger.DocumentInvoice, Amount: 520, Date: date}
	far := ledger.Document{ID: uuid.New(), Type: ledger.DocumentInvoice, Amount: 900, Date: date}
	skipped := ledger.Document{ID: uuid.New(), Type: ledger.DocumentProforma, Amount: 500, Date: date}

	candidates := cfg.scoreDocumentCandidates(charge, transactions, []ledger.Document{far, near, skipped, exact})
	if len(candidates) != 3 {
		t.Fatalf("proforma documents should be skipped, got %d candidates", len(candidates))
	}
	if *candidates[0].DocumentID != exact.ID || candidates[0].Confidence != 1.0 {
		t.Fatalf("exact match should rank first with 1.0, got %v", candidates[0].Confidence)
	}
	if *candidates[1].DocumentID != near.ID {
		t.Fatalf("near match should rank second")
	}
	if *candidates[2].DocumentID != far.ID || candidates[2].Confidence != 0 {
		t.Fatalf("far match should rank last with 0, got %v", candidates[2].Confidence)
	}
}

func TestScoreDocumentCandidatesDateTieBreak(t *testing.T) {
	cfg := DefaultConfig()
	charge := ledger.Charge{ID: uuid.New(), OwnerID: uuid.New()}
	date := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	transactions := []ledger.Transaction{{ID: uuid.New(), Amount: -500, DebitDate: date}}
	sameDay := ledger.Document{ID: uuid.New(), Type: ledger.DocumentInvoice, Amount: 500, Date: date}
	weekLater := ledger.Document{ID: uuid.New(), Type: ledger.DocumentInvoice, Amount: 500, Date: date.AddDate(0, 0, 7)}

	candidates := cfg.scoreDocumentCandidates(charge, transactions, []ledger.Document{weekLater, sameDay})
	if *candidates[0].DocumentID != sameDay.ID {
		t.Fatalf("equal confidence should fall back to date proximity")
	}
	if candidates[0].DateProximity != 1.0 {
		t.Fatalf("same-day pairing should score full proximity, got %v", candidates[0].DateProximity)
	}
}
