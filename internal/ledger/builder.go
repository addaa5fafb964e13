package ledger

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Urigo/accounter-fullstack-sub017/internal/rates"
)

// buildContext carries everything a builder needs, resolved up front by the
// service. Builders are pure: same context in, same protos out.
type buildContext struct {
	charge        Charge
	transactions  []Transaction
	documents     []Document
	salary        []SalaryRecord
	dividends     []DividendRecord
	tripExpenses  []TripExpense
	reserveAmount float64
	rates         rates.Table
	accounts      SystemAccounts
	cfg           Config
	now           time.Time
}

type buildFunc func(buildContext) ([]EntryProto, error)

// builders is the single dispatch table over charge kinds. Adding a kind is a
// one-place change here plus its build function.
var builders = map[ChargeKind]buildFunc{
	KindCommon:           buildCommon,
	KindConversion:       buildConversion,
	KindDividend:         buildDividend,
	KindSalary:           buildSalary,
	KindBusinessTrip:     buildBusinessTrip,
	KindRecoveryReserve:  buildRecoveryReserve,
	KindInternalTransfer: buildInternalTransfer,
	KindMonthlyVAT:       buildMonthlyVAT,
}

func buildProtos(bc buildContext) ([]EntryProto, error) {
	build, ok := builders[bc.charge.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, bc.charge.Kind)
	}
	sortInputs(&bc)
	return build(bc)
}

// sortInputs fixes the iteration order of every input collection so repeated
// builds of unchanged data yield identical proto lists.
func sortInputs(bc *buildContext) {
	sort.SliceStable(bc.transactions, func(i, j int) bool {
		a, b := bc.transactions[i], bc.transactions[j]
		if !a.DebitDate.Equal(b.DebitDate) {
			return a.DebitDate.Before(b.DebitDate)
		}
		return a.ID.String() < b.ID.String()
	})
	sort.SliceStable(bc.documents, func(i, j int) bool {
		a, b := bc.documents[i], bc.documents[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ID.String() < b.ID.String()
	})
	sort.SliceStable(bc.salary, func(i, j int) bool {
		a, b := bc.salary[i], bc.salary[j]
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return a.EmployeeID.String() < b.EmployeeID.String()
	})
	sort.SliceStable(bc.dividends, func(i, j int) bool {
		a, b := bc.dividends[i], bc.dividends[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ShareholderID.String() < b.ShareholderID.String()
	})
	sort.SliceStable(bc.tripExpenses, func(i, j int) bool {
		a, b := bc.tripExpenses[i], bc.tripExpenses[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ID.String() < b.ID.String()
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func f64(v float64) *float64 { return &v }

func ref(id uuid.UUID) *uuid.UUID { return &id }

// localize converts an amount to the local currency at the rate effective on
// the given date. Local-currency amounts pass through at rate 1.
func localize(amount float64, cur Currency, date time.Time, table rates.Table) (local, rate float64, err error) {
	if cur.IsLocal() {
		return round2(amount), 1, nil
	}
	rate, err = table.RateAt(date, string(cur))
	if err != nil {
		return 0, 0, err
	}
	return round2(amount * rate), rate, nil
}

// foreignAmount returns the amount pointer for a foreign-currency leg and nil
// for a local-currency one, so pure-local legs carry no foreign amount.
func foreignAmount(amount float64, cur Currency) *float64 {
	if cur.IsLocal() {
		return nil
	}
	return f64(amount)
}

// exchangeDifferenceProto posts a business's residual local-currency exposure
// against the exchange-rate-difference account, leaving the business netted
// to zero. net follows the validator's sign convention: credits add, debits
// subtract.
func exchangeDifferenceProto(bc buildContext, businessID uuid.UUID, net float64, invoiceDate, valueDate time.Time) EntryProto {
	p := EntryProto{
		ChargeID:    bc.charge.ID,
		OwnerID:     bc.charge.OwnerID,
		InvoiceDate: invoiceDate,
		ValueDate:   valueDate,
		Currency:    LocalCurrency,
		Description: "Exchange rate difference",
	}
	amount := round2(math.Abs(net))
	if net > 0 {
		p.DebitAccountID1 = ref(businessID)
		p.LocalDebitAmount1 = amount
		p.CreditAccountID1 = ref(bc.accounts.ExchangeRateDifference)
		p.LocalCreditAmount1 = amount
	} else {
		p.CreditAccountID1 = ref(businessID)
		p.LocalCreditAmount1 = amount
		p.DebitAccountID1 = ref(bc.accounts.ExchangeRateDifference)
		p.LocalDebitAmount1 = amount
	}
	return p
}

// settleResiduals appends exchange-difference protos for every given business
// whose foreign legs net to zero but whose local exposure does not.
func settleResiduals(bc buildContext, protos []EntryProto, businessIDs []uuid.UUID, invoiceDate, valueDate time.Time) []EntryProto {
	seen := make(map[uuid.UUID]bool)
	var ordered []uuid.UUID
	for _, id := range businessIDs {
		if !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}
	for _, id := range ordered {
		local, foreign := businessTotals(protos, id)
		balancedForeign := true
		for _, amount := range foreign {
			if math.Abs(amount) > bc.cfg.BalanceTolerance {
				balancedForeign = false
				break
			}
		}
		if balancedForeign && math.Abs(local) > bc.cfg.BalanceTolerance {
			protos = append(protos, exchangeDifferenceProto(bc, id, local, invoiceDate, valueDate))
		}
	}
	return protos
}
