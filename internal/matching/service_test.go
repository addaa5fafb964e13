package matching

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Urigo/accounter-fullstack-sub017/internal/ledger"
)

type memoryMatchRepo struct {
	charges      map[uuid.UUID]ledger.Charge
	transactions map[uuid.UUID][]ledger.Transaction
	documents    map[uuid.UUID][]ledger.Document
	poolDocs     []ledger.Document
	poolTxs      []ledger.Transaction
	attachedDocs map[uuid.UUID]uuid.UUID
}

func newMemoryMatchRepo() *memoryMatchRepo {
	return &memoryMatchRepo{
		charges:      make(map[uuid.UUID]ledger.Charge),
		transactions: make(map[uuid.UUID][]ledger.Transaction),
		documents:    make(map[uuid.UUID][]ledger.Document),
		attachedDocs: make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *memoryMatchRepo) GetCharge(ctx context.Context, chargeID uuid.UUID) (ledger.Charge, error) {
	charge, ok := r.charges[chargeID]
	if !ok {
		return ledger.Charge{}, ErrChargeNotFound
	}
	return charge, nil
}

func (r *memoryMatchRepo) ListTransactions(ctx context.Context, chargeID uuid.UUID) ([]ledger.Transaction, error) {
	return r.transactions[chargeID], nil
}

func (r *memoryMatchRepo) ListDocuments(ctx context.Context, chargeID uuid.UUID) ([]ledger.Document, error) {
	return r.documents[chargeID], nil
}

func (r *memoryMatchRepo) ListUnattachedDocuments(ctx context.Context, ownerID uuid.UUID) ([]ledger.Document, error) {
	return r.poolDocs, nil
}

func (r *memoryMatchRepo) ListUnattachedTransactions(ctx context.Context, ownerID uuid.UUID) ([]ledger.Transaction, error) {
	return r.poolTxs, nil
}

func (r *memoryMatchRepo) AttachDocument(ctx context.Context, documentID, chargeID uuid.UUID) error {
	for _, doc := range r.poolDocs {
		if doc.ID == documentID {
			r.attachedDocs[documentID] = chargeID
			return nil
		}
	}
	return ErrDocumentNotFound
}

func (r *memoryMatchRepo) AttachTransaction(ctx context.Context, transactionID, chargeID uuid.UUID) error {
	for _, tx := range r.poolTxs {
		if tx.ID == transactionID {
			return nil
		}
	}
	return ErrTransactionNotFound
}

func seedMatchCharge(repo *memoryMatchRepo, withTx, withDoc bool) uuid.UUID {
	chargeID := uuid.New()
	repo.charges[chargeID] = ledger.Charge{ID: chargeID, OwnerID: uuid.New(), Kind: ledger.KindCommon}
	date := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	if withTx {
		repo.transactions[chargeID] = []ledger.Transaction{{
			ID:        uuid.New(),
			Amount:    -500,
			Currency:  ledger.CurrencyUSD,
			DebitDate: date,
		}}
	}
	if withDoc {
		repo.documents[chargeID] = []ledger.Document{{
			ID:     uuid.New(),
			Type:   ledger.DocumentInvoice,
			Amount: 500,
			Date:   date,
		}}
	}
	return chargeID
}

func TestCandidatesForTransactionsOnlyCharge(t *testing.T) {
	repo := newMemoryMatchRepo()
	chargeID := seedMatchCharge(repo, true, false)
	repo.poolDocs = []ledger.Document{
		{ID: uuid.New(), Type: ledger.DocumentInvoice, Amount: 500, Date: time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)},
		{ID: uuid.New(), Type: ledger.DocumentInvoice, Amount: 900, Date: time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)},
	}
	svc := NewService(repo, DefaultConfig(), nil)

	candidates, err := svc.Candidates(context.Background(), chargeID)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	require.Equal(t, 1.0, candidates[0].Confidence)
	require.NotNil(t, candidates[0].DocumentID)
}

func TestCandidatesForDocumentsOnlyCharge(t *testing.T) {
	repo := newMemoryMatchRepo()
	chargeID := seedMatchCharge(repo, false, true)
	repo.poolTxs = []ledger.Transaction{{
		ID:        uuid.New(),
		Amount:    -500,
		Currency:  ledger.CurrencyUSD,
		DebitDate: time.Date(2024, time.March, 12, 0, 0, 0, 0, time.UTC),
	}}
	svc := NewService(repo, DefaultConfig(), nil)

	candidates, err := svc.Candidates(context.Background(), chargeID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, 1.0, candidates[0].Confidence)
	require.NotNil(t, candidates[0].TransactionID)
}

func TestCandidatesRefusesMatchedCharge(t *testing.T) {
	repo := newMemoryMatchRepo()
	chargeID := seedMatchCharge(repo, true, true)
	svc := NewService(repo, DefaultConfig(), nil)

	_, err := svc.Candidates(context.Background(), chargeID)
	require.ErrorIs(t, err, ErrAlreadyMatched)

	err = svc.AssignDocument(context.Background(), chargeID, uuid.New())
	require.ErrorIs(t, err, ErrAlreadyMatched)
}

func TestCandidatesRefusesEmptyCharge(t *testing.T) {
	repo := newMemoryMatchRepo()
	chargeID := seedMatchCharge(repo, false, false)
	svc := NewService(repo, DefaultConfig(), nil)

	_, err := svc.Candidates(context.Background(), chargeID)
	require.ErrorIs(t, err, ErrNoMatchableData)
}

func TestAssignDocument(t *testing.T) {
	repo := newMemoryMatchRepo()
	chargeID := seedMatchCharge(repo, true, false)
	doc := ledger.Document{ID: uuid.New(), Type: ledger.DocumentInvoice, Amount: 500}
	repo.poolDocs = []ledger.Document{doc}
	svc := NewService(repo, DefaultConfig(), nil)

	require.NoError(t, svc.AssignDocument(context.Background(), chargeID, doc.ID))
	require.Equal(t, chargeID, repo.attachedDocs[doc.ID])

	err := svc.AssignDocument(context.Background(), chargeID, uuid.New())
	require.ErrorIs(t, err, ErrDocumentNotFound)
}
