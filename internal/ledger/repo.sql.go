package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the Postgres-backed ledger repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) GetCharge(ctx context.Context, chargeID uuid.UUID) (Charge, error) {
	var c Charge
	err := r.db.QueryRow(ctx,
		`SELECT id, owner_id, kind, COALESCE(description, ''), COALESCE(tags, '{}'), created_at, updated_at
FROM charges WHERE id=$1`, chargeID).
		Scan(&c.ID, &c.OwnerID, &c.Kind, &c.Description, &c.Tags, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Charge{}, ErrChargeNotFound
		}
		return Charge{}, err
	}
	return c, nil
}

func (r *repository) ListTransactions(ctx context.Context, chargeID uuid.UUID) ([]Transaction, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, charge_id, account_id, business_id, amount, currency, event_date, debit_date,
COALESCE(description, ''), COALESCE(reference, '')
FROM transactions WHERE charge_id=$1 ORDER BY debit_date ASC, id ASC`, chargeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.ChargeID, &t.AccountID, &t.BusinessID, &t.Amount, &t.Currency,
			&t.EventDate, &t.DebitDate, &t.Description, &t.Reference); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repository) ListDocuments(ctx context.Context, chargeID uuid.UUID) ([]Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, charge_id, type, amount, COALESCE(vat_amount, 0), currency, date,
COALESCE(serial, ''), creditor_id, debtor_id
FROM documents WHERE charge_id=$1 ORDER BY date ASC, id ASC`, chargeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.ChargeID, &d.Type, &d.Amount, &d.VATAmount, &d.Currency,
			&d.Date, &d.Serial, &d.CreditorID, &d.DebtorID); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *repository) ListSalaryRecords(ctx context.Context, chargeID uuid.UUID) ([]SalaryRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT employee_id, COALESCE(employee_name, ''), month, base_amount,
pension_employee, pension_employer, training_fund_employee, training_fund_employer,
social_security_employee, social_security_employer, income_tax, health_insurance
FROM salary_records WHERE charge_id=$1 ORDER BY month ASC, employee_id ASC`, chargeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SalaryRecord
	for rows.Next() {
		var s SalaryRecord
		if err := rows.Scan(&s.EmployeeID, &s.EmployeeName, &s.Month, &s.BaseAmount,
			&s.PensionEmployee, &s.PensionEmployer, &s.TrainingFundEmployee, &s.TrainingFundEmployer,
			&s.SocialSecurityEmployee, &s.SocialSecurityEmployer, &s.IncomeTax, &s.HealthInsurance); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) ListDividendRecords(ctx context.Context, chargeID uuid.UUID) ([]DividendRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT shareholder_id, COALESCE(shareholder_name, ''), gross_amount, withholding_tax, date
FROM dividend_records WHERE charge_id=$1 ORDER BY date ASC, shareholder_id ASC`, chargeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DividendRecord
	for rows.Next() {
		var d DividendRecord
		if err := rows.Scan(&d.ShareholderID, &d.ShareholderName, &d.GrossAmount, &d.WithholdingTax, &d.Date); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *repository) ListTripExpenses(ctx context.Context, chargeID uuid.UUID) ([]TripExpense, error) {
	rows, err := r.db.Query(ctx,
		`SELECT e.id, e.employee_id, e.category, e.amount, e.currency, e.date
FROM business_trip_expenses e
JOIN business_trip_charges btc ON btc.trip_id = e.trip_id
WHERE btc.charge_id=$1 ORDER BY e.date ASC, e.id ASC`, chargeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TripExpense
	for rows.Next() {
		var e TripExpense
		if err := rows.Scan(&e.ID, &e.EmployeeID, &e.Category, &e.Amount, &e.Currency, &e.Date); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repository) GetRecoveryReserveAmount(ctx context.Context, ownerID uuid.UUID, year int) (float64, error) {
	var amount float64
	err := r.db.QueryRow(ctx,
		`SELECT amount FROM recovery_reserve_amounts WHERE owner_id=$1 AND year=$2`, ownerID, year).
		Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return amount, nil
}

func (r *repository) GetSystemAccounts(ctx context.Context, ownerID uuid.UUID) (SystemAccounts, error) {
	rows, err := r.db.Query(ctx,
		`SELECT role, account_id FROM system_accounts WHERE owner_id=$1`, ownerID)
	if err != nil {
		return SystemAccounts{}, err
	}
	defer rows.Close()
	var accounts SystemAccounts
	for rows.Next() {
		var role string
		var accountID uuid.UUID
		if err := rows.Scan(&role, &accountID); err != nil {
			return SystemAccounts{}, err
		}
		switch role {
		case "EXPENSES_DEFAULT":
			accounts.ExpensesDefault = accountID
		case "INCOME_DEFAULT":
			accounts.IncomeDefault = accountID
		case "VAT_INPUTS":
			accounts.VATInputs = accountID
		case "VAT_OUTPUTS":
			accounts.VATOutputs = accountID
		case "VAT_AUTHORITY":
			accounts.VATAuthority = accountID
		case "EXCHANGE_RATE_DIFFERENCE":
			accounts.ExchangeRateDifference = accountID
		case "CONVERSION_CLEARING":
			accounts.ConversionClearing = accountID
		case "SALARY_EXPENSES":
			accounts.SalaryExpenses = accountID
		case "PENSION_FUNDS":
			accounts.PensionFunds = accountID
		case "TRAINING_FUNDS":
			accounts.TrainingFunds = accountID
		case "SOCIAL_SECURITY":
			accounts.SocialSecurity = accountID
		case "INCOME_TAX_AUTHORITY":
			accounts.IncomeTaxAuthority = accountID
		case "HEALTH_INSURANCE":
			accounts.HealthInsurance = accountID
		case "RETAINED_EARNINGS":
			accounts.RetainedEarnings = accountID
		case "DIVIDEND_WITHHOLDING":
			accounts.DividendWithholding = accountID
		case "RECOVERY_RESERVE_EXPENSES":
			accounts.RecoveryReserveExpenses = accountID
		case "RECOVERY_RESERVE_PROVISION":
			accounts.RecoveryReserveProvision = accountID
		case "BUSINESS_TRIP_EXPENSES":
			accounts.BusinessTripExpenses = accountID
		}
	}
	return accounts, rows.Err()
}

func (r *repository) CountLedgerRecords(ctx context.Context, chargeID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_records WHERE charge_id=$1`, chargeID).Scan(&count)
	return count, err
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *repository) DeleteLedgerRecords(ctx context.Context, chargeID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM ledger_records WHERE charge_id=$1`, chargeID)
	return err
}

func (r *repository) DeleteUnbalancedBusinesses(ctx context.Context, chargeID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM unbalanced_businesses WHERE charge_id=$1`, chargeID)
	return err
}

func (r *repository) DeleteChargeTags(ctx context.Context, chargeID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM charge_tags WHERE charge_id=$1`, chargeID)
	return err
}

func (r *repository) DeleteBusinessTripLink(ctx context.Context, chargeID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM business_trip_charges WHERE charge_id=$1`, chargeID)
	return err
}

func (r *repository) DeleteChargeSpread(ctx context.Context, chargeID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM charge_spread WHERE charge_id=$1`, chargeID)
	return err
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) LockCharge(ctx context.Context, chargeID uuid.UUID) error {
	var id uuid.UUID
	err := r.tx.QueryRow(ctx, `SELECT id FROM charges WHERE id=$1 FOR UPDATE`, chargeID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrChargeNotFound
		}
		return err
	}
	return nil
}

func (r *txRepository) ReplaceLedgerRecords(ctx context.Context, chargeID uuid.UUID, protos []EntryProto) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM ledger_records WHERE charge_id=$1`, chargeID); err != nil {
		return fmt.Errorf("ledger: delete previous records: %w", err)
	}
	for _, p := range protos {
		_, err := r.tx.Exec(ctx, `
INSERT INTO ledger_records (
  id, charge_id, owner_id, invoice_date, value_date, currency,
  credit_account_id1, credit_account_id2, debit_account_id1, debit_account_id2,
  credit_amount1, credit_amount2, debit_amount1, debit_amount2,
  local_credit_amount1, local_credit_amount2, local_debit_amount1, local_debit_amount2,
  exchange_rate, description, reference, creditor_is_counterparty
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
			uuid.New(), chargeID, p.OwnerID, p.InvoiceDate, p.ValueDate, p.Currency,
			p.CreditAccountID1, p.CreditAccountID2, p.DebitAccountID1, p.DebitAccountID2,
			p.CreditAmount1, p.CreditAmount2, p.DebitAmount1, p.DebitAmount2,
			p.LocalCreditAmount1, p.LocalCreditAmount2, p.LocalDebitAmount1, p.LocalDebitAmount2,
			p.ExchangeRate, p.Description, p.Reference, p.CreditorIsCounterparty)
		if err != nil {
			return fmt.Errorf("ledger: insert record: %w", err)
		}
	}
	return nil
}

func (r *txRepository) ListUnbalancedBusinesses(ctx context.Context, chargeID uuid.UUID) ([]UnbalancedBusiness, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT charge_id, business_id, remark FROM unbalanced_businesses WHERE charge_id=$1 ORDER BY business_id ASC`,
		chargeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UnbalancedBusiness
	for rows.Next() {
		var m UnbalancedBusiness
		if err := rows.Scan(&m.ChargeID, &m.BusinessID, &m.Remark); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *txRepository) InsertUnbalancedBusiness(ctx context.Context, marker UnbalancedBusiness) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO unbalanced_businesses (charge_id, business_id, remark) VALUES ($1,$2,$3)`,
		marker.ChargeID, marker.BusinessID, marker.Remark)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Marker already present; reconciliation leaves it untouched.
			return nil
		}
		return err
	}
	return nil
}

func (r *txRepository) DeleteUnbalancedBusiness(ctx context.Context, chargeID, businessID uuid.UUID) error {
	_, err := r.tx.Exec(ctx,
		`DELETE FROM unbalanced_businesses WHERE charge_id=$1 AND business_id=$2`, chargeID, businessID)
	return err
}
