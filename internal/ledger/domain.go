// Package ledger turns heterogeneous financial source records into balanced
// double-entry ledger records, validates multi-currency consistency, tracks
// per-business imbalances and persists the result idempotently.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Currency identifies a traded currency. Fiat codes are ISO 4217; crypto
// codes appear only on conversion charges.
type Currency string

const (
	CurrencyILS Currency = "ILS"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"

	CurrencyUSDC Currency = "USDC"
	CurrencyGRT  Currency = "GRT"
)

// LocalCurrency is the book's home currency. Cross-currency postings must net
// to zero in every other currency while carrying the real value in this one.
const LocalCurrency = CurrencyILS

// IsLocal reports whether the currency is the book's home currency.
func (c Currency) IsLocal() bool { return c == LocalCurrency }

// IsCrypto reports whether the currency is a crypto asset.
func (c Currency) IsCrypto() bool {
	return c == CurrencyUSDC || c == CurrencyGRT
}

// ChargeKind discriminates the ledger-construction rule for a charge.
type ChargeKind string

const (
	KindCommon           ChargeKind = "COMMON"
	KindConversion       ChargeKind = "CONVERSION"
	KindDividend         ChargeKind = "DIVIDEND"
	KindSalary           ChargeKind = "SALARY"
	KindBusinessTrip     ChargeKind = "BUSINESS_TRIP"
	KindRecoveryReserve  ChargeKind = "RECOVERY_RESERVE"
	KindInternalTransfer ChargeKind = "INTERNAL_TRANSFER"
	KindMonthlyVAT       ChargeKind = "MONTHLY_VAT"
)

// Charge is an aggregate grouping transactions and documents that together
// represent one real-world financial event.
type Charge struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Kind        ChargeKind
	Description string
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Transaction is one money movement. Transactions are immutable once settled
// upstream; this engine only reads them.
type Transaction struct {
	ID          uuid.UUID
	ChargeID    uuid.UUID
	AccountID   uuid.UUID
	BusinessID  *uuid.UUID
	Amount      float64 // signed, negative = outflow
	Currency    Currency
	EventDate   time.Time
	DebitDate   time.Time
	Description string
	Reference   string
}

// DocumentType discriminates paper-trail records.
type DocumentType string

const (
	DocumentInvoice        DocumentType = "INVOICE"
	DocumentReceipt        DocumentType = "RECEIPT"
	DocumentInvoiceReceipt DocumentType = "INVOICE_RECEIPT"
	DocumentCreditInvoice  DocumentType = "CREDIT_INVOICE"
	DocumentProforma       DocumentType = "PROFORMA"
	DocumentUnprocessed    DocumentType = "UNPROCESSED"
	DocumentOther          DocumentType = "OTHER"
)

// IsAccounting reports whether the document type counts toward the
// "has documents" predicate. Proforma and unprocessed paperwork do not.
func (t DocumentType) IsAccounting() bool {
	switch t {
	case DocumentInvoice, DocumentReceipt, DocumentInvoiceReceipt, DocumentCreditInvoice:
		return true
	default:
		return false
	}
}

// Document is one piece of paper trail.
type Document struct {
	ID         uuid.UUID
	ChargeID   *uuid.UUID
	Type       DocumentType
	Amount     float64
	VATAmount  float64
	Currency   Currency
	Date       time.Time
	Serial     string
	CreditorID *uuid.UUID
	DebtorID   *uuid.UUID
}

// SalaryRecord holds one employee's payroll components for a month. Every
// component with a defined amount becomes its own ledger leg so a reconciler
// can trace each payroll component back to a line.
type SalaryRecord struct {
	EmployeeID             uuid.UUID
	EmployeeName           string
	Month                  string // YYYY-MM
	BaseAmount             float64
	PensionEmployee        *float64
	PensionEmployer        *float64
	TrainingFundEmployee   *float64
	TrainingFundEmployer   *float64
	SocialSecurityEmployee *float64
	SocialSecurityEmployer *float64
	IncomeTax              *float64
	HealthInsurance        *float64
}

// DividendRecord describes one shareholder's share of a dividend charge.
type DividendRecord struct {
	ShareholderID   uuid.UUID
	ShareholderName string
	GrossAmount     float64
	WithholdingTax  float64
	Date            time.Time
}

// TripExpenseCategory classifies business-trip expenses.
type TripExpenseCategory string

const (
	TripFlights       TripExpenseCategory = "FLIGHTS"
	TripAccommodation TripExpenseCategory = "ACCOMMODATION"
	TripMeals         TripExpenseCategory = "MEALS"
	TripOther         TripExpenseCategory = "OTHER"
)

// TripExpense is one reimbursable expense row attached to a business trip.
type TripExpense struct {
	ID         uuid.UUID
	EmployeeID uuid.UUID
	Category   TripExpenseCategory
	Amount     float64
	Currency   Currency
	Date       time.Time
}

// SystemAccounts holds the owner's internal posting accounts. These are
// regular business accounts flagged for a role; the engine reads them once
// per generation cycle.
type SystemAccounts struct {
	ExpensesDefault          uuid.UUID
	IncomeDefault            uuid.UUID
	VATInputs                uuid.UUID
	VATOutputs               uuid.UUID
	VATAuthority             uuid.UUID
	ExchangeRateDifference   uuid.UUID
	ConversionClearing       uuid.UUID
	SalaryExpenses           uuid.UUID
	PensionFunds             uuid.UUID
	TrainingFunds            uuid.UUID
	SocialSecurity           uuid.UUID
	IncomeTaxAuthority       uuid.UUID
	HealthInsurance          uuid.UUID
	RetainedEarnings         uuid.UUID
	DividendWithholding      uuid.UUID
	RecoveryReserveExpenses  uuid.UUID
	RecoveryReserveProvision uuid.UUID
	BusinessTripExpenses     uuid.UUID
}

// EntryProto is an unposted double-entry line. Up to two debit and two credit
// legs support split postings (e.g. principal and VAT in one proto). Every
// leg carrying a foreign-currency amount carries a mirrored local-currency
// amount; a leg with only a local amount is a pure-local posting.
type EntryProto struct {
	ChargeID    uuid.UUID
	OwnerID     uuid.UUID
	InvoiceDate time.Time
	ValueDate   time.Time
	Currency    Currency

	CreditAccountID1 *uuid.UUID
	CreditAccountID2 *uuid.UUID
	DebitAccountID1  *uuid.UUID
	DebitAccountID2  *uuid.UUID

	CreditAmount1 *float64
	CreditAmount2 *float64
	DebitAmount1  *float64
	DebitAmount2  *float64

	LocalCreditAmount1 float64
	LocalCreditAmount2 float64
	LocalDebitAmount1  float64
	LocalDebitAmount2  float64

	ExchangeRate           float64
	Description            string
	Reference              string
	CreditorIsCounterparty bool
}

type protoLeg struct {
	account *uuid.UUID
	foreign *float64
	local   float64
}

func (p EntryProto) creditLegs() []protoLeg {
	var legs []protoLeg
	if p.CreditAccountID1 != nil {
		legs = append(legs, protoLeg{p.CreditAccountID1, p.CreditAmount1, p.LocalCreditAmount1})
	}
	if p.CreditAccountID2 != nil {
		legs = append(legs, protoLeg{p.CreditAccountID2, p.CreditAmount2, p.LocalCreditAmount2})
	}
	return legs
}

func (p EntryProto) debitLegs() []protoLeg {
	var legs []protoLeg
	if p.DebitAccountID1 != nil {
		legs = append(legs, protoLeg{p.DebitAccountID1, p.DebitAmount1, p.LocalDebitAmount1})
	}
	if p.DebitAccountID2 != nil {
		legs = append(legs, protoLeg{p.DebitAccountID2, p.DebitAmount2, p.LocalDebitAmount2})
	}
	return legs
}

// LocalDebitTotal sums the proto's local-currency debit legs.
func (p EntryProto) LocalDebitTotal() float64 {
	var total float64
	for _, leg := range p.debitLegs() {
		total += leg.local
	}
	return total
}

// LocalCreditTotal sums the proto's local-currency credit legs.
func (p EntryProto) LocalCreditTotal() float64 {
	var total float64
	for _, leg := range p.creditLegs() {
		total += leg.local
	}
	return total
}

// Record is a persisted ledger row, produced 1:1 from an EntryProto.
type Record struct {
	ID uuid.UUID
	EntryProto
	CreatedAt time.Time
}

// UnbalancedBusiness marks a business whose postings for a charge do not net
// to zero within tolerance. The remark survives regeneration when the marker
// still applies.
type UnbalancedBusiness struct {
	ChargeID   uuid.UUID
	BusinessID uuid.UUID
	Remark     *string
}

// BalanceReport summarises charge-level balance.
type BalanceReport struct {
	IsBalanced            bool
	UnbalancedBusinessIDs []uuid.UUID
	BalanceSum            float64
}

// GeneratedLedger is the outcome of one generation cycle. Recoverable
// accounting conditions (imbalance, exchange mismatch) live in Errors; they
// are displayable state, not failures.
type GeneratedLedger struct {
	ChargeID  uuid.UUID
	Protos    []EntryProto
	Balance   BalanceReport
	Errors    []string
	Persisted bool
}

// Config carries the engine's numeric knobs. The tolerance value is an
// empirically chosen constant preserved for behavioural compatibility.
type Config struct {
	BalanceTolerance float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{BalanceTolerance: 0.005}
}

// ValidationError reports a charge that cannot produce a ledger for its kind
// (missing year, missing transactions, ...). Generation halts for that charge
// only; the condition is a typed result, not a crash.
type ValidationError struct {
	ChargeID uuid.UUID
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ledger: charge %s: %s", e.ChargeID, e.Reason)
}

var (
	// ErrChargeNotFound indicates the charge does not exist.
	ErrChargeNotFound = errors.New("ledger: charge not found")
	// ErrUnsupportedKind indicates a charge kind with no registered builder.
	ErrUnsupportedKind = errors.New("ledger: unsupported charge kind")
)
