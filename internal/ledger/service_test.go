package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Urigo/accounter-fullstack-sub017/internal/rates"
)

type memoryLedgerRepo struct {
	charges      map[uuid.UUID]Charge
	transactions map[uuid.UUID][]Transaction
	documents    map[uuid.UUID][]Document
	salary       map[uuid.UUID][]SalaryRecord
	dividends    map[uuid.UUID][]DividendRecord
	trips        map[uuid.UUID][]TripExpense
	reserves     map[int]float64
	accounts     SystemAccounts
	records      map[uuid.UUID][]EntryProto
	markers      map[uuid.UUID][]UnbalancedBusiness
	tags         map[uuid.UUID][]string
	deleteErrs   map[string]error
}

func newMemoryLedgerRepo() *memoryLedgerRepo {
	return &memoryLedgerRepo{
		charges:      make(map[uuid.UUID]Charge),
		transactions: make(map[uuid.UUID][]Transaction),
		documents:    make(map[uuid.UUID][]Document),
		salary:       make(map[uuid.UUID][]SalaryRecord),
		dividends:    make(map[uuid.UUID][]DividendRecord),
		trips:        make(map[uuid.UUID][]TripExpense),
		reserves:     make(map[int]float64),
		accounts:     testAccounts(),
		records:      make(map[uuid.UUID][]EntryProto),
		markers:      make(map[uuid.UUID][]UnbalancedBusiness),
		tags:         make(map[uuid.UUID][]string),
		deleteErrs:   make(map[string]error),
	}
}

func (r *memoryLedgerRepo) GetCharge(ctx context.Context, chargeID uuid.UUID) (Charge, error) {
	charge, ok := r.charges[chargeID]
	if !ok {
		return Charge{}, ErrChargeNotFound
	}
	return charge, nil
}

func (r *memoryLedgerRepo) ListTransactions(ctx context.Context, chargeID uuid.UUID) ([]Transaction, error) {
	return append([]Transaction(nil), r.transactions[chargeID]...), nil
}

func (r *memoryLedgerRepo) ListDocuments(ctx context.Context, chargeID uuid.UUID) ([]Document, error) {
	return append([]Document(nil), r.documents[chargeID]...), nil
}

func (r *memoryLedgerRepo) ListSalaryRecords(ctx context.Context, chargeID uuid.UUID) ([]SalaryRecord, error) {
	return append([]SalaryRecord(nil), r.salary[chargeID]...), nil
}

func (r *memoryLedgerRepo) ListDividendRecords(ctx context.Context, chargeID uuid.UUID) ([]DividendRecord, error) {
	return append([]DividendRecord(nil), r.dividends[chargeID]...), nil
}

func (r *memoryLedgerRepo) ListTripExpenses(ctx context.Context, chargeID uuid.UUID) ([]TripExpense, error) {
	return append([]TripExpense(nil), r.trips[chargeID]...), nil
}

func (r *memoryLedgerRepo) GetRecoveryReserveAmount(ctx context.Context, ownerID uuid.UUID, year int) (float64, error) {
	return r.reserves[year], nil
}

func (r *memoryLedgerRepo) GetSystemAccounts(ctx context.Context, ownerID uuid.UUID) (SystemAccounts, error) {
	return r.accounts, nil
}

func (r *memoryLedgerRepo) CountLedgerRecords(ctx context.Context, chargeID uuid.UUID) (int, error) {
	return len(r.records[chargeID]), nil
}

func (r *memoryLedgerRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryLedgerTx{repo: r})
}

func (r *memoryLedgerRepo) DeleteLedgerRecords(ctx context.Context, chargeID uuid.UUID) error {
	if err := r.deleteErrs["ledger records"]; err != nil {
		return err
	}
	delete(r.records, chargeID)
	return nil
}

func (r *memoryLedgerRepo) DeleteUnbalancedBusinesses(ctx context.Context, chargeID uuid.UUID) error {
	if err := r.deleteErrs["unbalanced markers"]; err != nil {
		return err
	}
	delete(r.markers, chargeID)
	return nil
}

func (r *memoryLedgerRepo) DeleteChargeTags(ctx context.Context, chargeID uuid.UUID) error {
	if err := r.deleteErrs["tags"]; err != nil {
		return err
	}
	delete(r.tags, chargeID)
	return nil
}

func (r *memoryLedgerRepo) DeleteBusinessTripLink(ctx context.Context, chargeID uuid.UUID) error {
	if err := r.deleteErrs["business trip link"]; err != nil {
		return err
	}
	delete(r.trips, chargeID)
	return nil
}

func (r *memoryLedgerRepo) DeleteChargeSpread(ctx context.Context, chargeID uuid.UUID) error {
	return r.deleteErrs["charge spread"]
}

type memoryLedgerTx struct {
	repo *memoryLedgerRepo
}

func (t *memoryLedgerTx) LockCharge(ctx context.Context, chargeID uuid.UUID) error {
	if _, ok := t.repo.charges[chargeID]; !ok {
		return ErrChargeNotFound
	}
	return nil
}

func (t *memoryLedgerTx) ReplaceLedgerRecords(ctx context.Context, chargeID uuid.UUID, protos []EntryProto) error {
	t.repo.records[chargeID] = append([]EntryProto(nil), protos...)
	return nil
}

func (t *memoryLedgerTx) ListUnbalancedBusinesses(ctx context.Context, chargeID uuid.UUID) ([]UnbalancedBusiness, error) {
	return append([]UnbalancedBusiness(nil), t.repo.markers[chargeID]...), nil
}

func (t *memoryLedgerTx) InsertUnbalancedBusiness(ctx context.Context, marker UnbalancedBusiness) error {
	for _, existing := range t.repo.markers[marker.ChargeID] {
		if existing.BusinessID == marker.BusinessID {
			return nil
		}
	}
	t.repo.markers[marker.ChargeID] = append(t.repo.markers[marker.ChargeID], marker)
	return nil
}

func (t *memoryLedgerTx) DeleteUnbalancedBusiness(ctx context.Context, chargeID, businessID uuid.UUID) error {
	kept := t.repo.markers[chargeID][:0]
	for _, marker := range t.repo.markers[chargeID] {
		if marker.BusinessID != businessID {
			kept = append(kept, marker)
		}
	}
	t.repo.markers[chargeID] = kept
	return nil
}

type staticRateSource struct {
	table rates.Table
}

func (s staticRateSource) Table(ctx context.Context, from, to time.Time) (rates.Table, error) {
	return s.table, nil
}

func newTestService(repo *memoryLedgerRepo) *Service {
	svc := NewService(repo, staticRateSource{table: testRateTable()}, nil, DefaultConfig(), nil)
	svc.WithNow(func() time.Time { return day(2025, time.June, 1) })
	return svc
}

// seedCommonCharge stores a foreign expense charge: a 500 USD invoice and its
// matching payment, settling at different rates.
func seedCommonCharge(repo *memoryLedgerRepo) (chargeID, supplier uuid.UUID) {
	chargeID, supplier = uuid.New(), uuid.New()
	ownerID := uuid.New()
	repo.charges[chargeID] = Charge{ID: chargeID, OwnerID: ownerID, Kind: KindCommon}
	repo.documents[chargeID] = []Document{{
		ID:         uuid.New(),
		Type:       DocumentInvoice,
		Amount:     500,
		Currency:   CurrencyUSD,
		Date:       day(2024, time.March, 1),
		CreditorID: &supplier,
		DebtorID:   &ownerID,
	}}
	repo.transactions[chargeID] = []Transaction{{
		ID:         uuid.New(),
		AccountID:  uuid.New(),
		BusinessID: &supplier,
		Amount:     -500,
		Currency:   CurrencyUSD,
		EventDate:  day(2024, time.March, 10),
		DebitDate:  day(2024, time.March, 10),
	}}
	return chargeID, supplier
}

func TestServiceGeneratePersistsIdempotently(t *testing.T) {
	repo := newMemoryLedgerRepo()
	chargeID, _ := seedCommonCharge(repo)
	svc := newTestService(repo)

	first, err := svc.Generate(context.Background(), chargeID, GenerateOptions{Persist: true})
	require.NoError(t, err)
	require.True(t, first.Persisted)
	require.True(t, first.Balance.IsBalanced)
	require.Empty(t, first.Errors)
	require.Len(t, repo.records[chargeID], 3)
	require.Empty(t, repo.markers[chargeID])

	second, err := svc.Generate(context.Background(), chargeID, GenerateOptions{Persist: true})
	require.NoError(t, err)
	require.Equal(t, first.Protos, second.Protos)
	require.Len(t, repo.records[chargeID], 3)
}

func TestServiceGenerateDryRun(t *testing.T) {
	repo := newMemoryLedgerRepo()
	chargeID, _ := seedCommonCharge(repo)
	svc := newTestService(repo)

	result, err := svc.Generate(context.Background(), chargeID, GenerateOptions{})
	require.NoError(t, err)
	require.False(t, result.Persisted)
	require.Len(t, result.Protos, 3)
	require.Empty(t, repo.records[chargeID])
}

func TestServiceGenerateExchangeErrorBlocksPersist(t *testing.T) {
	repo := newMemoryLedgerRepo()
	chargeID, supplier := seedCommonCharge(repo)
	// Short-pay the invoice so the supplier keeps a 100 USD exposure.
	repo.transactions[chargeID][0].Amount = -400
	svc := newTestService(repo)

	result, err := svc.Generate(context.Background(), chargeID, GenerateOptions{Persist: true})
	require.NoError(t, err)
	require.False(t, result.Persisted)
	require.NotEmpty(t, result.Errors)
	require.Contains(t, result.Errors[0], "USD")
	require.Empty(t, repo.records[chargeID])

	forced, err := svc.Generate(context.Background(), chargeID, GenerateOptions{Persist: true, Force: true})
	require.NoError(t, err)
	require.True(t, forced.Persisted)
	require.Len(t, repo.markers[chargeID], 1)
	require.Equal(t, supplier, repo.markers[chargeID][0].BusinessID)
}

func TestServiceMarkerReconciliationPreservesRemark(t *testing.T) {
	repo := newMemoryLedgerRepo()
	chargeID, supplier := seedCommonCharge(repo)
	repo.transactions[chargeID][0].Amount = -400
	remark := "waiting for the second wire"
	repo.markers[chargeID] = []UnbalancedBusiness{{ChargeID: chargeID, BusinessID: supplier, Remark: &remark}}
	svc := newTestService(repo)

	_, err := svc.Generate(context.Background(), chargeID, GenerateOptions{Persist: true, Force: true})
	require.NoError(t, err)
	require.Len(t, repo.markers[chargeID], 1)
	require.NotNil(t, repo.markers[chargeID][0].Remark)
	require.Equal(t, remark, *repo.markers[chargeID][0].Remark)

	// Fixing the payment clears the marker.
	repo.transactions[chargeID][0].Amount = -500
	_, err = svc.Generate(context.Background(), chargeID, GenerateOptions{Persist: true})
	require.NoError(t, err)
	require.Empty(t, repo.markers[chargeID])
}

func TestServiceGenerateRecoveryReserve(t *testing.T) {
	repo := newMemoryLedgerRepo()
	chargeID := uuid.New()
	repo.charges[chargeID] = Charge{
		ID:          chargeID,
		OwnerID:     uuid.New(),
		Kind:        KindRecoveryReserve,
		Description: "Recovery reserves for 2024",
	}
	repo.reserves[2024] = 1234.56
	svc := newTestService(repo)

	result, err := svc.Generate(context.Background(), chargeID, GenerateOptions{Persist: true})
	require.NoError(t, err)
	require.True(t, result.Persisted)
	require.Len(t, result.Protos, 1)
	require.Equal(t, "Recovery reserves for 2024", result.Protos[0].Description)
	require.Equal(t, 1234.56, result.Protos[0].LocalDebitAmount1)
}

func TestServiceGenerateChargeNotFound(t *testing.T) {
	svc := newTestService(newMemoryLedgerRepo())
	_, err := svc.Generate(context.Background(), uuid.New(), GenerateOptions{})
	require.ErrorIs(t, err, ErrChargeNotFound)
}

func TestServiceGenerateRejectsEmptyCharge(t *testing.T) {
	repo := newMemoryLedgerRepo()
	chargeID := uuid.New()
	repo.charges[chargeID] = Charge{ID: chargeID, OwnerID: uuid.New(), Kind: KindCommon}
	svc := newTestService(repo)

	_, err := svc.Generate(context.Background(), chargeID, GenerateOptions{})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestServiceDeleteChargeState(t *testing.T) {
	repo := newMemoryLedgerRepo()
	chargeID, _ := seedCommonCharge(repo)
	repo.records[chargeID] = []EntryProto{{}}
	repo.markers[chargeID] = []UnbalancedBusiness{{ChargeID: chargeID}}
	repo.tags[chargeID] = []string{"travel"}
	svc := newTestService(repo)

	require.NoError(t, svc.DeleteChargeState(context.Background(), chargeID))
	require.Empty(t, repo.records[chargeID])
	require.Empty(t, repo.markers[chargeID])
	require.Empty(t, repo.tags[chargeID])
}

func TestServiceDeleteChargeStateReportsFailedSteps(t *testing.T) {
	repo := newMemoryLedgerRepo()
	chargeID, _ := seedCommonCharge(repo)
	repo.deleteErrs["tags"] = errors.New("connection reset")
	repo.deleteErrs["charge spread"] = errors.New("connection reset")
	svc := newTestService(repo)

	err := svc.DeleteChargeState(context.Background(), chargeID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "tags")
	require.Contains(t, err.Error(), "charge spread")
}
