package matching

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Urigo/accounter-fullstack-sub017/internal/ledger"
)

// Service computes match candidates and applies match assignments.
type Service struct {
	repo   Repository
	cfg    Config
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cfg: cfg, logger: logger}
}

// Status returns the charge's current matching classification.
func (s *Service) Status(ctx context.Context, chargeID uuid.UUID) (Status, error) {
	_, transactions, documents, err := s.load(ctx, chargeID)
	if err != nil {
		return "", err
	}
	return Classify(transactions, documents), nil
}

// Candidates scores the owner's unattached pool against the charge. The pool
// side depends on what the charge is missing: documents for a
// transactions-only charge, transactions for a documents-only one. A matched
// charge refuses with ErrAlreadyMatched so a document cannot be double-booked
// into a reconciled charge.
func (s *Service) Candidates(ctx context.Context, chargeID uuid.UUID) ([]Candidate, error) {
	charge, transactions, documents, err := s.load(ctx, chargeID)
	if err != nil {
		return nil, err
	}

	switch Classify(transactions, documents) {
	case StatusMatched:
		return nil, fmt.Errorf("%w: %s", ErrAlreadyMatched, chargeID)
	case StatusInvalid:
		return nil, fmt.Errorf("%w: %s", ErrNoMatchableData, chargeID)
	case StatusTransactionsOnly:
		pool, err := s.repo.ListUnattachedDocuments(ctx, charge.OwnerID)
		if err != nil {
			return nil, err
		}
		return s.cfg.scoreDocumentCandidates(charge, transactions, pool), nil
	default:
		pool, err := s.repo.ListUnattachedTransactions(ctx, charge.OwnerID)
		if err != nil {
			return nil, err
		}
		return s.cfg.scoreTransactionCandidates(charge, documents, pool), nil
	}
}

// AssignDocument attaches an unattached document to a transactions-only
// charge.
func (s *Service) AssignDocument(ctx context.Context, chargeID, documentID uuid.UUID) error {
	_, transactions, documents, err := s.load(ctx, chargeID)
	if err != nil {
		return err
	}
	switch Classify(transactions, documents) {
	case StatusMatched:
		return fmt.Errorf("%w: %s", ErrAlreadyMatched, chargeID)
	case StatusInvalid, StatusDocumentsOnly:
		return fmt.Errorf("%w: %s", ErrNoMatchableData, chargeID)
	}
	if err := s.repo.AttachDocument(ctx, documentID, chargeID); err != nil {
		return err
	}
	s.logger.Info("document matched",
		slog.String("charge_id", chargeID.String()),
		slog.String("document_id", documentID.String()))
	return nil
}

// AssignTransaction attaches an unattached transaction to a documents-only
// charge.
func (s *Service) AssignTransaction(ctx context.Context, chargeID, transactionID uuid.UUID) error {
	_, transactions, documents, err := s.load(ctx, chargeID)
	if err != nil {
		return err
	}
	switch Classify(transactions, documents) {
	case StatusMatched:
		return fmt.Errorf("%w: %s", ErrAlreadyMatched, chargeID)
	case StatusInvalid, StatusTransactionsOnly:
		return fmt.Errorf("%w: %s", ErrNoMatchableData, chargeID)
	}
	if err := s.repo.AttachTransaction(ctx, transactionID, chargeID); err != nil {
		return err
	}
	s.logger.Info("transaction matched",
		slog.String("charge_id", chargeID.String()),
		slog.String("transaction_id", transactionID.String()))
	return nil
}

func (s *Service) load(ctx context.Context, chargeID uuid.UUID) (ledger.Charge, []ledger.Transaction, []ledger.Document, error) {
	charge, err := s.repo.GetCharge(ctx, chargeID)
	if err != nil {
		return ledger.Charge{}, nil, nil, err
	}
	transactions, err := s.repo.ListTransactions(ctx, chargeID)
	if err != nil {
		return ledger.Charge{}, nil, nil, err
	}
	documents, err := s.repo.ListDocuments(ctx, chargeID)
	if err != nil {
		return ledger.Charge{}, nil, nil, err
	}
	return charge, transactions, documents, nil
}
