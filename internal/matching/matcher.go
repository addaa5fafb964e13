package matching

import (
	"math"
	"sort"

	"github.com/Urigo/accounter-fullstack-sub017/internal/ledger"
)

// Classify derives the matching status from what the charge carries. Only
// accounting documents count toward the document side.
func Classify(transactions []ledger.Transaction, documents []ledger.Document) Status {
	accountingDocs := 0
	for _, doc := range documents {
		if doc.Type.IsAccounting() {
			accountingDocs++
		}
	}
	switch {
	case len(transactions) > 0 && accountingDocs > 0:
		return StatusMatched
	case len(transactions) > 0:
		return StatusTransactionsOnly
	case accountingDocs > 0:
		return StatusDocumentsOnly
	default:
		return StatusInvalid
	}
}

// AmountConfidence scores how likely two amounts describe the same event,
// using absolute values of both inputs. The curve has two regimes: a flat
// plateau for small absolute differences, then a percentage-based decay. The
// plateau matters for small amounts, where a fixed fee or rounding step is a
// large percentage but still the same payment.
func (c Config) AmountConfidence(transactionAmount, documentAmount float64) float64 {
	a, b := math.Abs(transactionAmount), math.Abs(documentAmount)
	diff := math.Abs(a - b)
	if diff == 0 {
		return 1.0
	}
	if diff <= c.PlateauDiff {
		return c.PlateauScore
	}

	smaller := math.Min(a, b)
	pct := 100.0
	if smaller > 0 {
		pct = diff / smaller * 100
	}
	if pct >= c.PercentCutoff {
		return 0
	}

	// The decay starts where the plateau ends: the percentage a
	// PlateauDiff-sized difference represents at this scale.
	floor := c.PlateauDiff / smaller * 100
	score := c.DecayTop * (c.PercentCutoff - pct) / (c.PercentCutoff - floor)
	return math.Round(score*100) / 100
}

// DateProximity scores how close two dates are, 1.0 for the same day down to
// 0.0 at the configured window. Used to break confidence ties, not as a
// match criterion on its own.
func (c Config) DateProximity(transactions []ledger.Transaction, doc ledger.Document) float64 {
	if c.DateWindowDays <= 0 || len(transactions) == 0 {
		return 0
	}
	best := 0.0
	for _, tx := range transactions {
		days := math.Abs(tx.DebitDate.Sub(doc.Date).Hours()) / 24
		if days >= float64(c.DateWindowDays) {
			continue
		}
		score := 1 - days/float64(c.DateWindowDays)
		if score > best {
			best = score
		}
	}
	return math.Round(best*100) / 100
}

// scoreDocumentCandidates computes one candidate per pool document, scored
// against the charge's best-matching transaction.
func (c Config) scoreDocumentCandidates(charge ledger.Charge, transactions []ledger.Transaction, pool []ledger.Document) []Candidate {
	candidates := make([]Candidate, 0, len(pool))
	for _, doc := range pool {
		if !doc.Type.IsAccounting() {
			continue
		}
		best := 0.0
		for _, tx := range transactions {
			if score := c.AmountConfidence(tx.Amount, doc.Amount); score > best {
				best = score
			}
		}
		docID := doc.ID
		candidates = append(candidates, Candidate{
			ChargeID:      charge.ID,
			DocumentID:    &docID,
			Confidence:    best,
			DateProximity: c.DateProximity(transactions, doc),
			Date:          doc.Date,
			Reference:     doc.Serial,
			Amount:        doc.Amount,
			Currency:      string(doc.Currency),
		})
	}
	sortCandidates(candidates)
	return candidates
}

// scoreTransactionCandidates is the symmetric direction for documents-only
// charges: pool transactions are scored against the charge's documents.
func (c Config) scoreTransactionCandidates(charge ledger.Charge, documents []ledger.Document, pool []ledger.Transaction) []Candidate {
	candidates := make([]Candidate, 0, len(pool))
	for _, tx := range pool {
		best := 0.0
		proximity := 0.0
		for _, doc := range documents {
			if !doc.Type.IsAccounting() {
				continue
			}
			if score := c.AmountConfidence(tx.Amount, doc.Amount); score > best {
				best = score
			}
			if p := c.DateProximity([]ledger.Transaction{tx}, doc); p > proximity {
				proximity = p
			}
		}
		txID := tx.ID
		candidates = append(candidates, Candidate{
			ChargeID:      charge.ID,
			TransactionID: &txID,
			Confidence:    best,
			DateProximity: proximity,
			Date:          tx.DebitDate,
			Reference:     tx.Reference,
			Amount:        tx.Amount,
			Currency:      string(tx.Currency),
		})
	}
	sortCandidates(candidates)
	return candidates
}

func sortCandidates(candidates []Candidate) {
	key := func(cand Candidate) string {
		if cand.DocumentID != nil {
			return cand.DocumentID.String()
		}
		return cand.TransactionID.String()
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.DateProximity != b.DateProximity {
			return a.DateProximity > b.DateProximity
		}
		return key(a) < key(b)
	})
}
