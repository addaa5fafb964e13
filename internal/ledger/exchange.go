package ledger

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	xcurrency "golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ExchangeError reports a per-business exchange imbalance. The message is
// user-facing; a bookkeeper uses it to locate the bad posting.
type ExchangeError struct {
	BusinessID uuid.UUID
	Message    string
}

func (e *ExchangeError) Error() string { return e.Message }

// businessTotals accumulates the signed exposure of one business across the
// protos: credit legs add, debit legs subtract. The local-currency
// accumulator is tracked separately from the per-currency foreign ones.
func businessTotals(protos []EntryProto, businessID uuid.UUID) (local float64, foreign map[Currency]float64) {
	foreign = make(map[Currency]float64)
	for _, p := range protos {
		for _, leg := range p.creditLegs() {
			if *leg.account != businessID {
				continue
			}
			local += leg.local
			if leg.foreign != nil && !p.Currency.IsLocal() {
				foreign[p.Currency] += *leg.foreign
			}
		}
		for _, leg := range p.debitLegs() {
			if *leg.account != businessID {
				continue
			}
			local -= leg.local
			if leg.foreign != nil && !p.Currency.IsLocal() {
				foreign[p.Currency] -= *leg.foreign
			}
		}
	}
	return local, foreign
}

// businessTouched reports whether any leg in the protos references the business.
func businessTouched(protos []EntryProto, businessID uuid.UUID) bool {
	for _, p := range protos {
		for _, leg := range append(p.creditLegs(), p.debitLegs()...) {
			if *leg.account == businessID {
				return true
			}
		}
	}
	return false
}

// ValidateExchange verifies that one business's postings for a charge are
// exchange-consistent: every foreign currency nets to zero within tolerance,
// and the local-currency accumulator matches the externally supplied expected
// exchange amount. Invoked once per counterparty business, not per charge.
func ValidateExchange(businessID uuid.UUID, protos []EntryProto, expected float64, cfg Config) error {
	if !businessTouched(protos, businessID) {
		return &ExchangeError{
			BusinessID: businessID,
			Message:    fmt.Sprintf("Local currency amount is required for business %s", businessID),
		}
	}
	local, foreign := businessTotals(protos, businessID)

	currencies := make([]Currency, 0, len(foreign))
	for cur := range foreign {
		currencies = append(currencies, cur)
	}
	sort.Slice(currencies, func(i, j int) bool { return currencies[i] < currencies[j] })

	printer := message.NewPrinter(language.English)
	for _, cur := range currencies {
		net := foreign[cur]
		if math.Abs(net) > cfg.BalanceTolerance {
			return &ExchangeError{
				BusinessID: businessID,
				Message: printer.Sprintf("Business %s has a non-zero %s balance of %s%v",
					businessID, cur, currencySymbol(cur), number.Decimal(round2(math.Abs(net)), number.MaxFractionDigits(2), number.MinFractionDigits(2))),
			}
		}
	}

	if len(currencies) == 0 && math.Abs(local) > cfg.BalanceTolerance {
		// An exchange validation without any foreign leg is meaningless;
		// a local residual here indicates a modeling bug upstream.
		return &ExchangeError{
			BusinessID: businessID,
			Message: printer.Sprintf("Business %s has no foreign-currency legs but a local residual of %v",
				businessID, number.Decimal(round2(local), number.MaxFractionDigits(2), number.MinFractionDigits(2))),
		}
	}

	// Intentionally coarse: a sanity check against the stated exchange
	// amount, not a diagnostic.
	if math.Abs(local-expected) > cfg.BalanceTolerance {
		return &ExchangeError{BusinessID: businessID, Message: "Exchange rate error"}
	}
	return nil
}

var currencySymbols = map[Currency]string{
	CurrencyILS:  "₪",
	CurrencyUSD:  "$",
	CurrencyEUR:  "€",
	CurrencyGBP:  "£",
	CurrencyUSDC: "USDC ",
	CurrencyGRT:  "GRT ",
}

func currencySymbol(cur Currency) string {
	if symbol, ok := currencySymbols[cur]; ok {
		return symbol
	}
	if unit, err := xcurrency.ParseISO(string(cur)); err == nil {
		return unit.String() + " "
	}
	return string(cur) + " "
}
