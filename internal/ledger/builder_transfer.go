package ledger

import (
	"fmt"
	"math"
)

// buildInternalTransfer handles transfers between two of the owner's own
// accounts. Both legs post through the conversion clearing account so each
// proto stays self-balanced even when the two settlements resolve at
// different rates; a local residual settles against the exchange-difference
// account.
func buildInternalTransfer(bc buildContext) ([]EntryProto, error) {
	base, quote, err := conversionLegs(bc)
	if err != nil {
		return nil, &ValidationError{
			ChargeID: bc.charge.ID,
			Reason:   "internal transfer must have exactly one outgoing and one incoming transaction",
		}
	}
	if base.Currency != quote.Currency {
		return nil, &ValidationError{
			ChargeID: bc.charge.ID,
			Reason:   "internal transfer legs must share a currency; use a conversion charge",
		}
	}

	outAmount := math.Abs(base.Amount)
	if base.Currency.IsLocal() && math.Abs(outAmount-quote.Amount) > bc.cfg.BalanceTolerance {
		return nil, &ValidationError{
			ChargeID: bc.charge.ID,
			Reason:   fmt.Sprintf("internal transfer amounts do not match: %.2f out, %.2f in", outAmount, quote.Amount),
		}
	}

	localOut, rateOut, err := localize(outAmount, base.Currency, base.DebitDate, bc.rates)
	if err != nil {
		return nil, err
	}
	localIn, rateIn, err := localize(quote.Amount, quote.Currency, quote.DebitDate, bc.rates)
	if err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("Internal transfer %.2f %s", outAmount, base.Currency)
	protos := []EntryProto{
		{
			ChargeID:           bc.charge.ID,
			OwnerID:            bc.charge.OwnerID,
			InvoiceDate:        base.EventDate,
			ValueDate:          base.DebitDate,
			Currency:           base.Currency,
			ExchangeRate:       rateOut,
			Reference:          base.Reference,
			Description:        desc,
			CreditAccountID1:   ref(base.AccountID),
			CreditAmount1:      foreignAmount(outAmount, base.Currency),
			LocalCreditAmount1: localOut,
			DebitAccountID1:    ref(bc.accounts.ConversionClearing),
			LocalDebitAmount1:  localOut,
		},
		{
			ChargeID:           bc.charge.ID,
			OwnerID:            bc.charge.OwnerID,
			InvoiceDate:        quote.EventDate,
			ValueDate:          quote.DebitDate,
			Currency:           quote.Currency,
			ExchangeRate:       rateIn,
			Reference:          quote.Reference,
			Description:        desc,
			DebitAccountID1:    ref(quote.AccountID),
			DebitAmount1:       foreignAmount(quote.Amount, quote.Currency),
			LocalDebitAmount1:  localIn,
			CreditAccountID1:   ref(bc.accounts.ConversionClearing),
			LocalCreditAmount1: localIn,
		},
	}

	residual := round2(localIn - localOut)
	if math.Abs(residual) > bc.cfg.BalanceTolerance {
		protos = append(protos, exchangeDifferenceProto(bc, bc.accounts.ConversionClearing, residual, base.EventDate, quote.DebitDate))
	}
	return protos, nil
}
