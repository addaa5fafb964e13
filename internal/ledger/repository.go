package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Repository encapsulates DB access for ledger generation. Reads are assumed
// consistent as of the start of a generation cycle; the engine fetches each
// collection once and threads the values through the build.
type Repository interface {
	GetCharge(ctx context.Context, chargeID uuid.UUID) (Charge, error)
	ListTransactions(ctx context.Context, chargeID uuid.UUID) ([]Transaction, error)
	ListDocuments(ctx context.Context, chargeID uuid.UUID) ([]Document, error)
	ListSalaryRecords(ctx context.Context, chargeID uuid.UUID) ([]SalaryRecord, error)
	ListDividendRecords(ctx context.Context, chargeID uuid.UUID) ([]DividendRecord, error)
	ListTripExpenses(ctx context.Context, chargeID uuid.UUID) ([]TripExpense, error)
	GetRecoveryReserveAmount(ctx context.Context, ownerID uuid.UUID, year int) (float64, error)
	GetSystemAccounts(ctx context.Context, ownerID uuid.UUID) (SystemAccounts, error)

	CountLedgerRecords(ctx context.Context, chargeID uuid.UUID) (int, error)

	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	// Charge-deletion cleanup steps. Each is independently callable and
	// independently reportable; no distributed transaction is assumed.
	DeleteLedgerRecords(ctx context.Context, chargeID uuid.UUID) error
	DeleteUnbalancedBusinesses(ctx context.Context, chargeID uuid.UUID) error
	DeleteChargeTags(ctx context.Context, chargeID uuid.UUID) error
	DeleteBusinessTripLink(ctx context.Context, chargeID uuid.UUID) error
	DeleteChargeSpread(ctx context.Context, chargeID uuid.UUID) error
}

// TxRepository exposes the storage operations that must share one transaction
// so readers see either the fully-old or the fully-new ledger state.
type TxRepository interface {
	// LockCharge takes a row lock on the charge, serializing concurrent
	// regenerations of the same charge within the database.
	LockCharge(ctx context.Context, chargeID uuid.UUID) error
	// ReplaceLedgerRecords atomically swaps the charge's generated rows.
	ReplaceLedgerRecords(ctx context.Context, chargeID uuid.UUID, protos []EntryProto) error

	ListUnbalancedBusinesses(ctx context.Context, chargeID uuid.UUID) ([]UnbalancedBusiness, error)
	InsertUnbalancedBusiness(ctx context.Context, marker UnbalancedBusiness) error
	DeleteUnbalancedBusiness(ctx context.Context, chargeID, businessID uuid.UUID) error
}
