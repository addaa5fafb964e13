package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// buildCommon handles ordinary expense and income charges: every accounting
// document posts the counterparty against the expense or income account
// (splitting VAT to its own leg), every transaction posts the counterparty
// against the owning bank account, and any exchange-rate residual per
// counterparty is settled against the exchange-difference account.
func buildCommon(bc buildContext) ([]EntryProto, error) {
	var protos []EntryProto
	var counterparties []uuid.UUID
	var lastDocDate, lastTxDate time.Time

	for _, doc := range bc.documents {
		if !doc.Type.IsAccounting() {
			continue
		}
		proto, counterparty, err := documentProto(bc, doc)
		if err != nil {
			return nil, err
		}
		protos = append(protos, proto)
		counterparties = append(counterparties, counterparty)
		if doc.Date.After(lastDocDate) {
			lastDocDate = doc.Date
		}
	}

	for _, tx := range bc.transactions {
		proto, counterparty, err := transactionProto(bc, tx)
		if err != nil {
			return nil, err
		}
		protos = append(protos, proto)
		counterparties = append(counterparties, counterparty)
		if tx.DebitDate.After(lastTxDate) {
			lastTxDate = tx.DebitDate
		}
	}

	if len(protos) == 0 {
		return nil, &ValidationError{ChargeID: bc.charge.ID, Reason: "charge has no transactions or accounting documents"}
	}

	// A residual only forms when both sides of the paper trail exist.
	if !lastDocDate.IsZero() && !lastTxDate.IsZero() {
		protos = settleResiduals(bc, protos, counterparties, lastDocDate, lastTxDate)
	}
	return protos, nil
}

func documentProto(bc buildContext, doc Document) (EntryProto, uuid.UUID, error) {
	ownerID := bc.charge.OwnerID
	var counterparty *uuid.UUID
	var isExpense bool
	switch {
	case doc.DebtorID != nil && *doc.DebtorID == ownerID:
		isExpense = true
		counterparty = doc.CreditorID
	case doc.CreditorID != nil && *doc.CreditorID == ownerID:
		isExpense = false
		counterparty = doc.DebtorID
	}
	if counterparty == nil {
		return EntryProto{}, uuid.Nil, &ValidationError{
			ChargeID: bc.charge.ID,
			Reason:   fmt.Sprintf("document %s does not reference both the charge owner and a counterparty", doc.ID),
		}
	}
	if doc.Type == DocumentCreditInvoice {
		isExpense = !isExpense
	}

	amount := math.Abs(doc.Amount)
	vat := math.Abs(doc.VATAmount)
	if vat > amount {
		return EntryProto{}, uuid.Nil, &ValidationError{
			ChargeID: bc.charge.ID,
			Reason:   fmt.Sprintf("document %s VAT amount exceeds its total", doc.ID),
		}
	}
	local, rate, err := localize(amount, doc.Currency, doc.Date, bc.rates)
	if err != nil {
		return EntryProto{}, uuid.Nil, err
	}
	localVAT := round2(vat * rate)
	localPrincipal := local - localVAT
	principal := amount - vat

	proto := EntryProto{
		ChargeID:     bc.charge.ID,
		OwnerID:      ownerID,
		InvoiceDate:  doc.Date,
		ValueDate:    doc.Date,
		Currency:     doc.Currency,
		ExchangeRate: rate,
		Reference:    doc.Serial,
		Description:  documentDescription(doc, bc.charge),
	}
	if isExpense {
		proto.CreditorIsCounterparty = true
		proto.CreditAccountID1 = counterparty
		proto.CreditAmount1 = foreignAmount(amount, doc.Currency)
		proto.LocalCreditAmount1 = local
		proto.DebitAccountID1 = ref(bc.accounts.ExpensesDefault)
		proto.DebitAmount1 = foreignAmount(principal, doc.Currency)
		proto.LocalDebitAmount1 = localPrincipal
		if vat > 0 {
			proto.DebitAccountID2 = ref(bc.accounts.VATInputs)
			proto.DebitAmount2 = foreignAmount(vat, doc.Currency)
			proto.LocalDebitAmount2 = localVAT
		}
	} else {
		proto.DebitAccountID1 = counterparty
		proto.DebitAmount1 = foreignAmount(amount, doc.Currency)
		proto.LocalDebitAmount1 = local
		proto.CreditAccountID1 = ref(bc.accounts.IncomeDefault)
		proto.CreditAmount1 = foreignAmount(principal, doc.Currency)
		proto.LocalCreditAmount1 = localPrincipal
		if vat > 0 {
			proto.CreditAccountID2 = ref(bc.accounts.VATOutputs)
			proto.CreditAmount2 = foreignAmount(vat, doc.Currency)
			proto.LocalCreditAmount2 = localVAT
		}
	}
	return proto, *counterparty, nil
}

func transactionProto(bc buildContext, tx Transaction) (EntryProto, uuid.UUID, error) {
	if tx.BusinessID == nil {
		return EntryProto{}, uuid.Nil, &ValidationError{
			ChargeID: bc.charge.ID,
			Reason:   fmt.Sprintf("transaction %s has no counterparty business", tx.ID),
		}
	}
	amount := math.Abs(tx.Amount)
	local, rate, err := localize(amount, tx.Currency, tx.DebitDate, bc.rates)
	if err != nil {
		return EntryProto{}, uuid.Nil, err
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
		// Outflow: settle the counterparty, credit the paying account.
		proto.DebitAccountID1 = tx.BusinessID
		proto.DebitAmount1 = foreignAmount(amount, tx.Currency)
		proto.LocalDebitAmount1 = local
		proto.CreditAccountID1 = ref(tx.AccountID)
		proto.CreditAmount1 = foreignAmount(amount, tx.Currency)
		proto.LocalCreditAmount1 = local
	} else {
		proto.CreditorIsCounterparty = true
		proto.CreditAccountID1 = tx.BusinessID
		proto.CreditAmount1 = foreignAmount(amount, tx.Currency)
		proto.LocalCreditAmount1 = local
		proto.DebitAccountID1 = ref(tx.AccountID)
		proto.DebitAmount1 = foreignAmount(amount, tx.Currency)
		proto.LocalDebitAmount1 = local
	}
	return proto, *tx.BusinessID, nil
}

func documentDescription(doc Document, charge Charge) string {
	label := map[DocumentType]string{
		DocumentInvoice:        "Invoice",
		DocumentReceipt:        "Receipt",
		DocumentInvoiceReceipt: "Invoice receipt",
		DocumentCreditInvoice:  "Credit invoice",
	}[doc.Type]
	if label == "" {
		label = "Document"
	}
	base := fmt.Sprintf("%s %s (%s)", label, doc.Serial, doc.Date.Format("2006-01"))
	if charge.Description != "" {
		return base + " " + charge.Description
	}
	return base
}

func transactionDescription(tx Transaction, charge Charge) string {
	if tx.Description != "" {
		return fmt.Sprintf("%s (%s)", tx.Description, tx.DebitDate.Format("2006-01"))
	}
	if charge.Description != "" {
		return fmt.Sprintf("%s (%s)", charge.Description, tx.DebitDate.Format("2006-01"))
	}
	return fmt.Sprintf("Transaction %s (%s)", tx.Reference, tx.DebitDate.Format("2006-01"))
}
