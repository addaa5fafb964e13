package ledger

import (
	"fmt"
	"regexp"
	"time"
)

var reserveYearPattern = regexp.MustCompile(`\b(20\d{2})\b`)

// parseReserveYear extracts the 4-digit year a recovery-reserve charge states
// in its free-text description. The year must fall between 2000 and the
// current year.
func parseReserveYear(charge Charge, now time.Time) (int, error) {
	match := reserveYearPattern.FindStringSubmatch(charge.Description)
	if match == nil {
		return 0, &ValidationError{
			ChargeID: charge.ID,
			Reason:   "recovery reserve charge requires a 4-digit year in its description",
		}
	}
	var year int
	if _, err := fmt.Sscanf(match[1], "%d", &year); err != nil {
		return 0, &ValidationError{ChargeID: charge.ID, Reason: "recovery reserve year is not numeric"}
	}
	if year < 2000 || year > now.Year() {
		return 0, &ValidationError{
			ChargeID: charge.ID,
			Reason:   fmt.Sprintf("recovery reserve year %d is outside 2000..%d", year, now.Year()),
		}
	}
	return year, nil
}

// buildRecoveryReserve posts the yearly recovery-reserve provision. The
// charge has one date concept, so December 31 of the stated year serves as
// both invoice and value date.
func buildRecoveryReserve(bc buildContext) ([]EntryProto, error) {
	year, err := parseReserveYear(bc.charge, bc.now)
	if err != nil {
		return nil, err
	}
	if bc.reserveAmount <= 0 {
		return nil, &ValidationError{
			ChargeID: bc.charge.ID,
			Reason:   fmt.Sprintf("no recovery reserve amount resolved for %d", year),
		}
	}
	amount := round2(bc.reserveAmount)
	yearEnd := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	return []EntryProto{{
		ChargeID:           bc.charge.ID,
		OwnerID:            bc.charge.OwnerID,
		InvoiceDate:        yearEnd,
		ValueDate:          yearEnd,
		Currency:           LocalCurrency,
		ExchangeRate:       1,
		Description:        fmt.Sprintf("Recovery reserves for %d", year),
		DebitAccountID1:    ref(bc.accounts.RecoveryReserveExpenses),
		LocalDebitAmount1:  amount,
		CreditAccountID1:   ref(bc.accounts.RecoveryReserveProvision),
		LocalCreditAmount1: amount,
	}}, nil
}
