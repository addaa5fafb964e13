package ledger

import "math"

// buildMonthlyVAT handles the monthly VAT settlement charge: each payment to
// (or refund from) the tax authority posts the VAT authority account against
// the paying bank account.
func buildMonthlyVAT(bc buildContext) ([]EntryProto, error) {
	if len(bc.transactions) == 0 {
		return nil, &ValidationError{ChargeID: bc.charge.ID, Reason: "monthly VAT charge has no settlement transaction"}
	}

	var protos []EntryProto
	for _, tx := range bc.transactions {
		amount := math.Abs(tx.Amount)
		local, rate, err := localize(amount, tx.Currency, tx.DebitDate, bc.rates)
		if err != nil {
			return nil, err
		}
		proto := EntryProto{
			ChargeID:     bc.charge.ID,
			OwnerID:      bc.charge.OwnerID,
			InvoiceDate:  tx.EventDate,
			ValueDate:    tx.DebitDate,
			Currency:     tx.Currency,
			ExchangeRate: rate,
			Reference:    tx.Reference,
			Description:  transactionDescription(tx, bc.charge),
		}
		if tx.Amount < 0 {
			proto.DebitAccountID1 = ref(bc.accounts.VATAuthority)
			proto.DebitAmount1 = foreignAmount(amount, tx.Currency)
			proto.LocalDebitAmount1 = local
			proto.CreditAccountID1 = ref(tx.AccountID)
			proto.CreditAmount1 = foreignAmount(amount, tx.Currency)
			proto.LocalCreditAmount1 = local
		} else {
			proto.DebitAccountID1 = ref(tx.AccountID)
			proto.DebitAmount1 = foreignAmount(amount, tx.Currency)
			proto.LocalDebitAmount1 = local
			proto.CreditAccountID1 = ref(bc.accounts.VATAuthority)
			proto.CreditAmount1 = foreignAmount(amount, tx.Currency)
			proto.LocalCreditAmount1 = local
		}
		protos = append(protos, proto)
	}
	return protos, nil
}
