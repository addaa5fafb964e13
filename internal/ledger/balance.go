package ledger

import (
	"math"
	"sort"

	"github.com/google/uuid"
)

// CheckBalance verifies that total local-currency debits equal total credits
// across the protos. On imbalance it attributes the residual to the specific
// businesses whose net exposure is non-zero, because storage needs
// per-business markers, not a single charge-level flag.
func CheckBalance(protos []EntryProto, cfg Config) BalanceReport {
	var debits, credits float64
	involved := make(map[uuid.UUID]struct{})
	for _, p := range protos {
		for _, leg := range p.debitLegs() {
			debits += leg.local
			involved[*leg.account] = struct{}{}
		}
		for _, leg := range p.creditLegs() {
			credits += leg.local
			involved[*leg.account] = struct{}{}
		}
	}

	report := BalanceReport{BalanceSum: round2(credits - debits)}
	if math.Abs(report.BalanceSum) <= cfg.BalanceTolerance {
		report.IsBalanced = true
		report.BalanceSum = 0
		return report
	}

	ids := make([]uuid.UUID, 0, len(involved))
	for id := range involved {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		local, _ := businessTotals(protos, id)
		if math.Abs(local) > cfg.BalanceTolerance {
			report.UnbalancedBusinessIDs = append(report.UnbalancedBusinessIDs, id)
		}
	}
	return report
}
