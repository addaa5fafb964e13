package ledger

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// twoLeggedUSD returns a credit proto and a debit proto moving the given USD
// amounts through the business, localized at the given rate.
func twoLeggedUSD(business, other uuid.UUID, creditUSD, debitUSD, rate float64) []EntryProto {
	date := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	return []EntryProto{
		{
			InvoiceDate:        date,
			ValueDate:          date,
			Currency:           CurrencyUSD,
			ExchangeRate:       rate,
			CreditAccountID1:   &business,
			CreditAmount1:      f64(creditUSD),
			LocalCreditAmount1: round2(creditUSD * rate),
			DebitAccountID1:    &other,
			DebitAmount1:       f64(creditUSD),
			LocalDebitAmount1:  round2(creditUSD * rate),
		},
		{
			InvoiceDate:        date,
			ValueDate:          date,
			Currency:           CurrencyUSD,
			ExchangeRate:       rate,
			DebitAccountID1:    &business,
			DebitAmount1:       f64(debitUSD),
			LocalDebitAmount1:  round2(debitUSD * rate),
			CreditAccountID1:   &other,
			CreditAmount1:      f64(debitUSD),
			LocalCreditAmount1: round2(debitUSD * rate),
		},
	}
}

func TestValidateExchangeBalanced(t *testing.T) {
	business, other := uuid.New(), uuid.New()
	protos := twoLeggedUSD(business, other, 100, 100, 3.70)
	if err := ValidateExchange(business, protos, 0, DefaultConfig()); err != nil {
		t.Fatalf("balanced business should validate: %v", err)
	}
}

func TestValidateExchangeForeignResidual(t *testing.T) {
	business, other := uuid.New(), uuid.New()
	protos := twoLeggedUSD(business, other, 100, 100, 3.70)
	// Perturb the debit leg so USD no longer nets to zero.
	protos[1].DebitAmount1 = f64(99)
	protos[1].LocalDebitAmount1 = round2(99 * 3.70)

	err := ValidateExchange(business, protos, 0, DefaultConfig())
	var exErr *ExchangeError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected ExchangeError got %v", err)
	}
	if exErr.BusinessID != business {
		t.Fatalf("error should name the business, got %s", exErr.BusinessID)
	}
	if !strings.Contains(exErr.Message, "USD") {
		t.Fatalf("error should name the imbalanced currency: %q", exErr.Message)
	}
	if !strings.Contains(exErr.Message, "$1.00") {
		t.Fatalf("error should carry the formatted residual: %q", exErr.Message)
	}
}

func TestValidateExchangeUntouchedBusiness(t *testing.T) {
	business, other := uuid.New(), uuid.New()
	protos := twoLeggedUSD(business, other, 100, 100, 3.70)

	err := ValidateExchange(uuid.New(), protos, 0, DefaultConfig())
	var exErr *ExchangeError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected ExchangeError got %v", err)
	}
	if !strings.Contains(exErr.Message, "Local currency amount is required") {
		t.Fatalf("unexpected message %q", exErr.Message)
	}
}

func TestValidateExchangeRateError(t *testing.T) {
	business, other := uuid.New(), uuid.New()
	protos := twoLeggedUSD(business, other, 100, 100, 3.70)
	// Same USD both ways but localized at diverging rates: the foreign side
	// nets to zero while the local side drifts.
	protos[1].LocalDebitAmount1 = round2(100 * 3.65)
	protos[1].LocalCreditAmount1 = round2(100 * 3.65)

	err := ValidateExchange(business, protos, 0, DefaultConfig())
	var exErr *ExchangeError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected ExchangeError got %v", err)
	}
	if exErr.Message != "Exchange rate error" {
		t.Fatalf("expected the coarse rate error, got %q", exErr.Message)
	}
}

func TestValidateExchangeLocalResidualWithoutForeignLegs(t *testing.T) {
	business, other := uuid.New(), uuid.New()
	protos := []EntryProto{{
		Currency:           CurrencyILS,
		CreditAccountID1:   &business,
		LocalCreditAmount1: 40,
		DebitAccountID1:    &other,
		LocalDebitAmount1:  40,
	}}

	err := ValidateExchange(business, protos, 0, DefaultConfig())
	var exErr *ExchangeError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected ExchangeError got %v", err)
	}
	if !strings.Contains(exErr.Message, "no foreign-currency legs") {
		t.Fatalf("unexpected message %q", exErr.Message)
	}
}
