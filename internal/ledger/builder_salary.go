package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// buildSalary handles payroll charges. Each defined payroll component becomes
// its own proto so a reconciler can trace every component back to a line;
// nothing is silently summed away. Payment transactions then settle each
// employee's net payable.
func buildSalary(bc buildContext) ([]EntryProto, error) {
	if len(bc.salary) == 0 {
		return nil, &ValidationError{ChargeID: bc.charge.ID, Reason: "salary charge has no salary records"}
	}

	var protos []EntryProto
	for _, record := range bc.salary {
		monthEnd, err := salaryMonthEnd(record.Month)
		if err != nil {
			return nil, &ValidationError{ChargeID: bc.charge.ID, Reason: err.Error()}
		}

		employee := record.EmployeeID
		name := record.EmployeeName
		if name == "" {
			name = employee.String()
		}

		protos = append(protos, salaryProto(bc, monthEnd,
			bc.accounts.SalaryExpenses, employee, record.BaseAmount,
			fmt.Sprintf("Salary %s %s", record.Month, name)))

		type component struct {
			amount      *float64
			fromExpense bool
			account     uuid.UUID
			label       string
		}
		components := []component{
			{record.PensionEmployee, false, bc.accounts.PensionFunds, "Pension employee"},
			{record.PensionEmployer, true, bc.accounts.PensionFunds, "Pension employer"},
			{record.TrainingFundEmployee, false, bc.accounts.TrainingFunds, "Training fund employee"},
			{record.TrainingFundEmployer, true, bc.accounts.TrainingFunds, "Training fund employer"},
			{record.SocialSecurityEmployee, false, bc.accounts.SocialSecurity, "Social security employee"},
			{record.SocialSecurityEmployer, true, bc.accounts.SocialSecurity, "Social security employer"},
			{record.IncomeTax, false, bc.accounts.IncomeTaxAuthority, "Income tax"},
			{record.HealthInsurance, false, bc.accounts.HealthInsurance, "Health insurance"},
		}
		for _, c := range components {
			if c.amount == nil {
				continue
			}
			debit := employee
			if c.fromExpense {
				debit = bc.accounts.SalaryExpenses
			}
			protos = append(protos, salaryProto(bc, monthEnd,
				debit, c.account, *c.amount,
				fmt.Sprintf("%s %s %s", c.label, record.Month, name)))
		}
	}

	for _, tx := range bc.transactions {
		if tx.BusinessID == nil {
			return nil, &ValidationError{
				ChargeID: bc.charge.ID,
				Reason:   fmt.Sprintf("salary payment %s has no employee business", tx.ID),
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
	}
	return protos, nil
}

// salaryProto posts one payroll component in local currency, debit against
// credit for the same amount.
func salaryProto(bc buildContext, date time.Time, debit, credit uuid.UUID, amount float64, description string) EntryProto {
	amount = round2(amount)
	return EntryProto{
		ChargeID:           bc.charge.ID,
		OwnerID:            bc.charge.OwnerID,
		InvoiceDate:        date,
		ValueDate:          date,
		Currency:           LocalCurrency,
		ExchangeRate:       1,
		Description:        description,
		DebitAccountID1:    ref(debit),
		LocalDebitAmount1:  amount,
		CreditAccountID1:   ref(credit),
		LocalCreditAmount1: amount,
	}
}

func salaryMonthEnd(month string) (time.Time, error) {
	parsed, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, fmt.Errorf("salary record month %q is not YYYY-MM", month)
	}
	return parsed.AddDate(0, 1, -1), nil
}
