package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// buildDividend handles dividend distributions. Per shareholder: the gross
// dividend moves from retained earnings to the shareholder, the withholding
// tax moves from the shareholder to the withholding account, and the payment
// transaction settles the remaining net payable.
func buildDividend(bc buildContext) ([]EntryProto, error) {
	if len(bc.dividends) == 0 {
		return nil, &ValidationError{ChargeID: bc.charge.ID, Reason: "dividend charge has no dividend records"}
	}

	var protos []EntryProto
	var shareholders []uuid.UUID
	var lastRecordDate, lastTxDate time.Time

	for _, record := range bc.dividends {
		if record.WithholdingTax < 0 || record.WithholdingTax > record.GrossAmount {
			return nil, &ValidationError{
				ChargeID: bc.charge.ID,
				Reason:   fmt.Sprintf("dividend for %s has withholding tax outside the gross amount", record.ShareholderID),
			}
		}
		name := record.ShareholderName
		if name == "" {
			name = record.ShareholderID.String()
		}
		gross := round2(record.GrossAmount)
		protos = append(protos, EntryProto{
			ChargeID:               bc.charge.ID,
			OwnerID:                bc.charge.OwnerID,
			InvoiceDate:            record.Date,
			ValueDate:              record.Date,
			Currency:               LocalCurrency,
			ExchangeRate:           1,
			Description:            fmt.Sprintf("Dividend %s (%s)", name, record.Date.Format("2006-01")),
			DebitAccountID1:        ref(bc.accounts.RetainedEarnings),
			LocalDebitAmount1:      gross,
			CreditAccountID1:       ref(record.ShareholderID),
			LocalCreditAmount1:     gross,
			CreditorIsCounterparty: true,
		})
		if tax := round2(record.WithholdingTax); tax > 0 {
			protos = append(protos, EntryProto{
				ChargeID:           bc.charge.ID,
				OwnerID:            bc.charge.OwnerID,
				InvoiceDate:        record.Date,
				ValueDate:          record.Date,
				Currency:           LocalCurrency,
				ExchangeRate:       1,
				Description:        fmt.Sprintf("Dividend withholding tax %s (%s)", name, record.Date.Format("2006-01")),
				DebitAccountID1:    ref(record.ShareholderID),
				LocalDebitAmount1:  tax,
				CreditAccountID1:   ref(bc.accounts.DividendWithholding),
				LocalCreditAmount1: tax,
			})
		}
		shareholders = append(shareholders, record.ShareholderID)
		if record.Date.After(lastRecordDate) {
			lastRecordDate = record.Date
		}
	}

	for _, tx := range bc.transactions {
		if tx.Amount >= 0 {
			return nil, &ValidationError{
				ChargeID: bc.charge.ID,
				Reason:   fmt.Sprintf("dividend payment %s is not an outflow", tx.ID),
			}
		}
		if tx.BusinessID == nil {
			return nil, &ValidationError{
				ChargeID: bc.charge.ID,
				Reason:   fmt.Sprintf("dividend payment %s has no shareholder business", tx.ID),
			}
		}
		amount := math.Abs(tx.Amount)
		local, rate, err := localize(amount, tx.Currency, tx.DebitDate, bc.rates)
		if err != nil {
			return nil, err
		}
		protos = append(protos, EntryProto{
			ChargeID:           bc.charge.ID,
			OwnerID:            bc.charge.OwnerID,
			InvoiceDate:        tx.EventDate,
			ValueDate:          tx.DebitDate,
			Currency:           tx.Currency,
			ExchangeRate:       rate,
			Reference:          tx.Reference,
			Description:        transactionDescription(tx, bc.charge),
			DebitAccountID1:    tx.BusinessID,
			DebitAmount1:       foreignAmount(amount, tx.Currency),
			LocalDebitAmount1:  local,
			CreditAccountID1:   ref(tx.AccountID),
			CreditAmount1:      foreignAmount(amount, tx.Currency),
			LocalCreditAmount1: local,
		})
		if tx.DebitDate.After(lastTxDate) {
			lastTxDate = tx.DebitDate
		}
	}

	if !lastRecordDate.IsZero() && !lastTxDate.IsZero() {
		protos = settleResiduals(bc, protos, shareholders, lastRecordDate, lastTxDate)
	}
	return protos, nil
}
