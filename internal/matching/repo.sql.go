package matching

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Urigo/accounter-fullstack-sub017/internal/ledger"
)

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the Postgres-backed matching repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) GetCharge(ctx context.Context, chargeID uuid.UUID) (ledger.Charge, error) {
	var c ledger.Charge
	err := r.db.QueryRow(ctx,
		`SELECT id, owner_id, kind, COALESCE(description, ''), COALESCE(tags, '{}'), created_at, updated_at
FROM charges WHERE id=$1`, chargeID).
		Scan(&c.ID, &c.OwnerID, &c.Kind, &c.Description, &c.Tags, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Charge{}, ErrChargeNotFound
		}
		return ledger.Charge{}, err
	}
	return c, nil
}

func (r *repository) ListTransactions(ctx context.Context, chargeID uuid.UUID) ([]ledger.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT id, charge_id, account_id, business_id, amount, currency, event_date, debit_date,
COALESCE(description, ''), COALESCE(reference, '')
FROM transactions WHERE charge_id=$1 ORDER BY debit_date ASC, id ASC`, chargeID)
}

func (r *repository) ListDocuments(ctx context.Context, chargeID uuid.UUID) ([]ledger.Document, error) {
	return r.queryDocuments(ctx,
		`SELECT id, charge_id, type, amount, COALESCE(vat_amount, 0), currency, date,
COALESCE(serial, ''), creditor_id, debtor_id
FROM documents WHERE charge_id=$1 ORDER BY date ASC, id ASC`, chargeID)
}

func (r *repository) ListUnattachedDocuments(ctx context.Context, ownerID uuid.UUID) ([]ledger.Document, error) {
	return r.queryDocuments(ctx,
		`SELECT id, charge_id, type, amount, COALESCE(vat_amount, 0), currency, date,
COALESCE(serial, ''), creditor_id, debtor_id
FROM documents
WHERE charge_id IS NULL AND owner_id=$1
AND type IN ('INVOICE', 'RECEIPT', 'INVOICE_RECEIPT', 'CREDIT_INVOICE')
ORDER BY date DESC, id ASC`, ownerID)
}

func (r *repository) ListUnattachedTransactions(ctx context.Context, ownerID uuid.UUID) ([]ledger.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT id, COALESCE(charge_id, '00000000-0000-0000-0000-000000000000'), account_id, business_id,
amount, currency, event_date, debit_date, COALESCE(description, ''), COALESCE(reference, '')
FROM transactions WHERE charge_id IS NULL AND owner_id=$1 ORDER BY debit_date DESC, id ASC`, ownerID)
}

func (r *repository) AttachDocument(ctx context.Context, documentID, chargeID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET charge_id=$2 WHERE id=$1 AND charge_id IS NULL`, documentID, chargeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *repository) AttachTransaction(ctx context.Context, transactionID, chargeID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE transactions SET charge_id=$2 WHERE id=$1 AND charge_id IS NULL`, transactionID, chargeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *repository) queryTransactions(ctx context.Context, query string, arg any) ([]ledger.Transaction, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Transaction
	for rows.Next() {
		var t ledger.Transaction
		if err := rows.Scan(&t.ID, &t.ChargeID, &t.AccountID, &t.BusinessID, &t.Amount, &t.Currency,
			&t.EventDate, &t.DebitDate, &t.Description, &t.Reference); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repository) queryDocuments(ctx context.Context, query string, arg any) ([]ledger.Document, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Document
	for rows.Next() {
		var d ledger.Document
		if err := rows.Scan(&d.ID, &d.ChargeID, &d.Type, &d.Amount, &d.VATAmount, &d.Currency,
			&d.Date, &d.Serial, &d.CreditorID, &d.DebtorID); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
