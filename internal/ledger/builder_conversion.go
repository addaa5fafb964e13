package ledger

import (
	"fmt"
	"math"
	"strings"
)

// ConversionRates carries the conceptual rates of a conversion charge. Any of
// them may be absent; only defined, non-identity rates are surfaced.
type ConversionRates struct {
	Direct       *float64 // quote units per base unit
	ToLocal      *float64 // foreign leg to local currency
	CryptoToFiat *float64 // crypto leg expressed in USD
}

// Surfaced returns the rates worth showing downstream, labeled.
func (r ConversionRates) Surfaced() []string {
	var out []string
	add := func(label string, rate *float64) {
		if rate == nil || *rate == 1 {
			return
		}
		out = append(out, fmt.Sprintf("%s %.4f", label, *rate))
	}
	add("rate", r.Direct)
	add("local", r.ToLocal)
	add("crypto", r.CryptoToFiat)
	return out
}

// buildConversion handles currency conversion charges: the outgoing and
// incoming transactions each post their bank account against the conversion
// clearing account in local value, and the clearing residual (the conversion
// gain or loss) is settled against the exchange-difference account. The
// clearing legs carry no foreign amount so the clearing account stays free of
// foreign-currency exposure.
func buildConversion(bc buildContext) ([]EntryProto, error) {
	base, quote, err := conversionLegs(bc)
	if err != nil {
		return nil, err
	}

	baseAmount := math.Abs(base.Amount)
	localBase, rateBase, err := localize(baseAmount, base.Currency, base.DebitDate, bc.rates)
	if err != nil {
		return nil, err
	}
	localQuote, rateQuote, err := localize(quote.Amount, quote.Currency, quote.DebitDate, bc.rates)
	if err != nil {
		return nil, err
	}

	convRates := conversionRates(bc, base, quote, rateBase, rateQuote)
	desc := conversionDescription(base.Currency, quote.Currency, convRates)

	out := EntryProto{
		ChargeID:           bc.charge.ID,
		OwnerID:            bc.charge.OwnerID,
		InvoiceDate:        base.EventDate,
		ValueDate:          base.DebitDate,
		Currency:           base.Currency,
		ExchangeRate:       rateBase,
		Reference:          base.Reference,
		Description:        desc,
		CreditAccountID1:   ref(base.AccountID),
		CreditAmount1:      foreignAmount(baseAmount, base.Currency),
		LocalCreditAmount1: localBase,
		DebitAccountID1:    ref(bc.accounts.ConversionClearing),
		LocalDebitAmount1:  localBase,
	}
	in := EntryProto{
		ChargeID:           bc.charge.ID,
		OwnerID:            bc.charge.OwnerID,
		InvoiceDate:        quote.EventDate,
		ValueDate:          quote.DebitDate,
		Currency:           quote.Currency,
		ExchangeRate:       rateQuote,
		Reference:          quote.Reference,
		Description:        desc,
		DebitAccountID1:    ref(quote.AccountID),
		DebitAmount1:       foreignAmount(quote.Amount, quote.Currency),
		LocalDebitAmount1:  localQuote,
		CreditAccountID1:   ref(bc.accounts.ConversionClearing),
		LocalCreditAmount1: localQuote,
	}
	protos := []EntryProto{out, in}

	// Clearing nets to localQuote - localBase under the credit-add,
	// debit-subtract convention; a residual beyond tolerance is the
	// conversion gain or loss.
	residual := round2(localQuote - localBase)
	if math.Abs(residual) > bc.cfg.BalanceTolerance {
		protos = append(protos, exchangeDifferenceProto(bc, bc.accounts.ConversionClearing, residual, base.EventDate, quote.DebitDate))
	}
	return protos, nil
}

func conversionLegs(bc buildContext) (base, quote Transaction, err error) {
	var haveBase, haveQuote bool
	for _, tx := range bc.transactions {
		switch {
		case tx.Amount < 0 && !haveBase:
			base, haveBase = tx, true
		case tx.Amount > 0 && !haveQuote:
			quote, haveQuote = tx, true
		default:
			return Transaction{}, Transaction{}, &ValidationError{
				ChargeID: bc.charge.ID,
				Reason:   "conversion charge must have exactly one outgoing and one incoming transaction",
			}
		}
	}
	if !haveBase || !haveQuote {
		return Transaction{}, Transaction{}, &ValidationError{
			ChargeID: bc.charge.ID,
			Reason:   "conversion charge must have exactly one outgoing and one incoming transaction",
		}
	}
	return base, quote, nil
}

func conversionRates(bc buildContext, base, quote Transaction, rateBase, rateQuote float64) ConversionRates {
	var r ConversionRates
	if baseAmount := math.Abs(base.Amount); baseAmount > 0 {
		r.Direct = f64(quote.Amount / baseAmount)
	}
	switch {
	case !base.Currency.IsLocal():
		r.ToLocal = f64(rateBase)
	case !quote.Currency.IsLocal():
		r.ToLocal = f64(rateQuote)
	}
	if cryptoRate := cryptoFiatRate(bc, base, quote, rateBase, rateQuote); cryptoRate != nil {
		r.CryptoToFiat = cryptoRate
	}
	return r
}

// cryptoFiatRate expresses the crypto leg's rate in USD when a crypto
// currency takes part in the conversion and a USD rate is known for the same
// value date.
func cryptoFiatRate(bc buildContext, base, quote Transaction, rateBase, rateQuote float64) *float64 {
	var cryptoRate float64
	var valueDate = base.DebitDate
	switch {
	case base.Currency.IsCrypto():
		cryptoRate = rateBase
	case quote.Currency.IsCrypto():
		cryptoRate = rateQuote
		valueDate = quote.DebitDate
	default:
		return nil
	}
	usdRate, err := bc.rates.RateAt(valueDate, string(CurrencyUSD))
	if err != nil || usdRate == 0 {
		return nil
	}
	return f64(cryptoRate / usdRate)
}

func conversionDescription(from, to Currency, r ConversionRates) string {
	desc := fmt.Sprintf("Conversion %s to %s", from, to)
	if surfaced := r.Surfaced(); len(surfaced) > 0 {
		desc += " at " + strings.Join(surfaced, ", ")
	}
	return desc
}
