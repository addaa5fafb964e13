package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

var tripCategoryLabels = map[TripExpenseCategory]string{
	TripFlights:       "Flights",
	TripAccommodation: "Accommodation",
	TripMeals:         "Meals",
	TripOther:         "Travel expenses",
}

// buildBusinessTrip handles business-trip charges. Every trip expense row
// posts the trip-expense account against the employee who fronted it, and the
// reimbursement transactions settle the employee payables. Each expense row
// keeps its own proto so the reconciler can trace per-category amounts.
func buildBusinessTrip(bc buildContext) ([]EntryProto, error) {
	if len(bc.tripExpenses) == 0 {
		return nil, &ValidationError{ChargeID: bc.charge.ID, Reason: "business trip charge has no expense rows"}
	}

	var protos []EntryProto
	var employees []uuid.UUID
	var lastExpenseDate, lastTxDate time.Time

	for _, expense := range bc.tripExpenses {
		amount := math.Abs(expense.Amount)
		local, rate, err := localize(amount, expense.Currency, expense.Date, bc.rates)
		if err != nil {
			return nil, err
		}
		label := tripCategoryLabels[expense.Category]
		if label == "" {
			label = string(expense.Category)
		}
		protos = append(protos, EntryProto{
			ChargeID:               bc.charge.ID,
			OwnerID:                bc.charge.OwnerID,
			InvoiceDate:            expense.Date,
			ValueDate:              expense.Date,
			Currency:               expense.Currency,
			ExchangeRate:           rate,
			Description:            fmt.Sprintf("%s, %s (%s)", label, bc.charge.Description, expense.Date.Format("2006-01")),
			DebitAccountID1:        ref(bc.accounts.BusinessTripExpenses),
			DebitAmount1:           foreignAmount(amount, expense.Currency),
			LocalDebitAmount1:      local,
			CreditAccountID1:       ref(expense.EmployeeID),
			CreditAmount1:          foreignAmount(amount, expense.Currency),
			LocalCreditAmount1:     local,
			CreditorIsCounterparty: true,
		})
		employees = append(employees, expense.EmployeeID)
		if expense.Date.After(lastExpenseDate) {
			lastExpenseDate = expense.Date
		}
	}

	for _, tx := range bc.transactions {
		if tx.BusinessID == nil {
			return nil, &ValidationError{
				ChargeID: bc.charge.ID,
				Reason:   fmt.Sprintf("trip reimbursement %s has no employee business", tx.ID),
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

	if !lastExpenseDate.IsZero() && !lastTxDate.IsZero() {
		protos = settleResiduals(bc, protos, employees, lastExpenseDate, lastTxDate)
	}
	return protos, nil
}
