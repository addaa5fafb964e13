// Package matching pairs loose accounting documents with charges that carry
// transactions, scoring each candidate pairing by amount similarity and date
// proximity. Candidates are computed on demand and never stored.
package matching

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status classifies a charge's matching state. The states are mutually
// exclusive; a charge is never both matched and eligible for matching.
type Status string

const (
	// StatusMatched means the charge has both transactions and accounting
	// documents. It is no longer eligible for automatic matching.
	StatusMatched Status = "MATCHED"
	// StatusTransactionsOnly means the charge awaits a document match.
	StatusTransactionsOnly Status = "TRANSACTIONS_ONLY"
	// StatusDocumentsOnly means the charge awaits a transaction match.
	StatusDocumentsOnly Status = "DOCUMENTS_ONLY"
	// StatusInvalid means the charge has neither side and cannot be matched.
	StatusInvalid Status = "INVALID"
)

var (
	// ErrAlreadyMatched is raised when a match operation targets a charge
	// that already has both sides. Double-booking a document into a
	// reconciled charge is a caller-side logic error.
	ErrAlreadyMatched = errors.New("matching: charge is already matched")
	// ErrNoMatchableData is raised when a charge has neither transactions
	// nor accounting documents.
	ErrNoMatchableData = errors.New("matching: charge has no matchable data")
	// ErrChargeNotFound indicates the charge does not exist.
	ErrChargeNotFound = errors.New("matching: charge not found")
	// ErrDocumentNotFound indicates the document does not exist or is
	// already attached to a charge.
	ErrDocumentNotFound = errors.New("matching: document not found or already attached")
	// ErrTransactionNotFound indicates the transaction does not exist or
	// is already attached to a charge.
	ErrTransactionNotFound = errors.New("matching: transaction not found or already attached")
)

// Config carries the scoring knobs. The defaults reproduce the confidence
// curve bookkeepers already rely on; change them only in lockstep with the
// frontend that displays the scores.
type Config struct {
	// PlateauDiff is the absolute difference, in currency units, under
	// which a near-match scores PlateauScore regardless of percentage.
	PlateauDiff float64
	// PlateauScore is the score of the near-match plateau.
	PlateauScore float64
	// PercentCutoff is the percentage difference at and beyond which the
	// score is zero.
	PercentCutoff float64
	// DecayTop is the score at the start of the percentage decay, just
	// past the plateau.
	DecayTop float64
	// DateWindowDays bounds the date-proximity score; pairs further apart
	// than this score zero on proximity.
	DateWindowDays int
}

// DefaultConfig returns the production scoring defaults.
func DefaultConfig() Config {
	return Config{
		PlateauDiff:    1.0,
		PlateauScore:   0.9,
		PercentCutoff:  20,
		DecayTop:       0.7,
		DateWindowDays: 30,
	}
}

// Candidate is one scored pairing between a charge and an unattached
// document or transaction, depending on which side the charge is missing.
// Ephemeral; recomputed from current state on every request.
type Candidate struct {
	ChargeID      uuid.UUID
	DocumentID    *uuid.UUID
	TransactionID *uuid.UUID
	Confidence    float64
	DateProximity float64
	Date          time.Time
	Reference     string
	Amount        float64
	Currency      string
}
