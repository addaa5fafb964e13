package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Urigo/accounter-fullstack-sub017/internal/observability"
	"github.com/Urigo/accounter-fullstack-sub017/internal/rates"
	"github.com/Urigo/accounter-fullstack-sub017/internal/shared"
)

// RateSource resolves exchange-rate tables for a date span.
type RateSource interface {
	Table(ctx context.Context, from, to time.Time) (rates.Table, error)
}

// Service orchestrates ledger generation: fetch, build, validate, store.
type Service struct {
	repo    Repository
	rates   RateSource
	lock    *shared.ChargeLock
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService constructs a Service. The lock may be nil in single-process setups.
func NewService(repo Repository, rateSource RateSource, lock *shared.ChargeLock, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, rates: rateSource, lock: lock, cfg: cfg, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithMetrics attaches generation metrics. A nil receiver-safe Metrics keeps
// the service usable without observability wired.
func (s *Service) WithMetrics(m *observability.Metrics) {
	s.metrics = m
}

// GenerateOptions control one generation cycle.
type GenerateOptions struct {
	// Persist converts the protos into stored ledger rows; false is a dry run.
	Persist bool
	// Force persists even when validation reports the charge unbalanced.
	Force bool
}

// Generate runs one generation-and-store cycle for a charge. Recoverable
// accounting conditions come back inside the result; only precondition
// violations and infrastructure failures surface as errors.
func (s *Service) Generate(ctx context.Context, chargeID uuid.UUID, opts GenerateOptions) (GeneratedLedger, error) {
	if s.lock != nil {
		release, err := s.lock.Acquire(ctx, chargeID)
		if err != nil {
			return GeneratedLedger{}, err
		}
		defer release()
	}

	started := time.Now()
	bc, counterparties, err := s.assemble(ctx, chargeID)
	if err != nil {
		return GeneratedLedger{}, err
	}

	protos, err := buildProtos(bc)
	if err != nil {
		return GeneratedLedger{}, err
	}

	result := GeneratedLedger{ChargeID: chargeID, Protos: protos}
	result.Balance = CheckBalance(protos, s.cfg)

	markers := make(map[uuid.UUID]struct{})
	for _, id := range result.Balance.UnbalancedBusinessIDs {
		markers[id] = struct{}{}
	}
	if s.shouldValidateExchange(bc) {
		for _, businessID := range counterparties {
			if err := ValidateExchange(businessID, protos, 0, s.cfg); err != nil {
				result.Errors = append(result.Errors, err.Error())
				markers[businessID] = struct{}{}
			}
		}
	}

	valid := result.Balance.IsBalanced && len(result.Errors) == 0
	s.metrics.ObserveGeneration(string(bc.charge.Kind), valid, time.Since(started))
	if !opts.Persist || (!valid && !opts.Force) {
		return result, nil
	}

	markerIDs := make([]uuid.UUID, 0, len(markers))
	for id := range markers {
		markerIDs = append(markerIDs, id)
	}
	sort.Slice(markerIDs, func(i, j int) bool { return markerIDs[i].String() < markerIDs[j].String() })

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockCharge(ctx, chargeID); err != nil {
			return err
		}
		if err := tx.ReplaceLedgerRecords(ctx, chargeID, protos); err != nil {
			return err
		}
		return reconcileMarkers(ctx, tx, chargeID, markerIDs)
	})
	if err != nil {
		return GeneratedLedger{}, err
	}
	result.Persisted = true
	s.logger.Info("ledger generated",
		slog.String("charge_id", chargeID.String()),
		slog.String("kind", string(bc.charge.Kind)),
		slog.Int("protos", len(protos)),
		slog.Bool("balanced", result.Balance.IsBalanced))
	return result, nil
}

// assemble fetches everything one generation cycle needs, once, and returns
// the build context plus the ordered set of counterparty businesses.
func (s *Service) assemble(ctx context.Context, chargeID uuid.UUID) (buildContext, []uuid.UUID, error) {
	charge, err := s.repo.GetCharge(ctx, chargeID)
	if err != nil {
		return buildContext{}, nil, err
	}

	bc := buildContext{charge: charge, cfg: s.cfg, now: s.now()}

	bc.transactions, err = s.repo.ListTransactions(ctx, chargeID)
	if err != nil {
		return buildContext{}, nil, err
	}
	bc.documents, err = s.repo.ListDocuments(ctx, chargeID)
	if err != nil {
		return buildContext{}, nil, err
	}

	accountingDocs := 0
	for _, doc := range bc.documents {
		if doc.Type.IsAccounting() {
			accountingDocs++
		}
	}
	if charge.Kind != KindRecoveryReserve && len(bc.transactions) == 0 && accountingDocs == 0 {
		return buildContext{}, nil, &ValidationError{
			ChargeID: chargeID,
			Reason:   "charge has no transactions or accounting documents",
		}
	}

	switch charge.Kind {
	case KindSalary:
		bc.salary, err = s.repo.ListSalaryRecords(ctx, chargeID)
	case KindDividend:
		bc.dividends, err = s.repo.ListDividendRecords(ctx, chargeID)
	case KindBusinessTrip:
		bc.tripExpenses, err = s.repo.ListTripExpenses(ctx, chargeID)
	case KindRecoveryReserve:
		var year int
		year, err = parseReserveYear(charge, bc.now)
		if err == nil {
			bc.reserveAmount, err = s.repo.GetRecoveryReserveAmount(ctx, charge.OwnerID, year)
		}
	}
	if err != nil {
		return buildContext{}, nil, err
	}

	bc.accounts, err = s.repo.GetSystemAccounts(ctx, charge.OwnerID)
	if err != nil {
		return buildContext{}, nil, err
	}

	if from, to, foreign := s.dateSpan(bc); foreign {
		table, err := s.rates.Table(ctx, from, to)
		if err != nil {
			return buildContext{}, nil, err
		}
		bc.rates = table
	}

	return bc, s.counterparties(bc), nil
}

// dateSpan finds the charge's date range and whether any foreign currency is
// involved; rate snapshots are fetched once for the whole span.
func (s *Service) dateSpan(bc buildContext) (from, to time.Time, foreign bool) {
	observe := func(dates []time.Time, cur Currency) {
		if !cur.IsLocal() {
			foreign = true
		}
		for _, d := range dates {
			if d.IsZero() {
				continue
			}
			if from.IsZero() || d.Before(from) {
				from = d
			}
			if to.IsZero() || d.After(to) {
				to = d
			}
		}
	}
	for _, tx := range bc.transactions {
		observe([]time.Time{tx.EventDate, tx.DebitDate}, tx.Currency)
	}
	for _, doc := range bc.documents {
		if doc.Type.IsAccounting() {
			observe([]time.Time{doc.Date}, doc.Currency)
		}
	}
	for _, exp := range bc.tripExpenses {
		observe([]time.Time{exp.Date}, exp.Currency)
	}
	return from, to, foreign
}

// counterparties collects the businesses whose postings the exchange
// validator checks, in a deterministic order. Bank accounts and posting
// accounts are not counterparties; the conversion clearing account is
// included for conversion-style charges.
func (s *Service) counterparties(bc buildContext) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	add := func(id uuid.UUID) {
		if id == uuid.Nil {
			return
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, tx := range bc.transactions {
		if tx.BusinessID != nil {
			add(*tx.BusinessID)
		}
	}
	for _, doc := range bc.documents {
		if !doc.Type.IsAccounting() {
			continue
		}
		if doc.CreditorID != nil && *doc.CreditorID != bc.charge.OwnerID {
			add(*doc.CreditorID)
		}
		if doc.DebtorID != nil && *doc.DebtorID != bc.charge.OwnerID {
			add(*doc.DebtorID)
		}
	}
	for _, record := range bc.dividends {
		add(record.ShareholderID)
	}
	for _, exp := range bc.tripExpenses {
		add(exp.EmployeeID)
	}
	switch bc.charge.Kind {
	case KindConversion, KindInternalTransfer:
		out = []uuid.UUID{bc.accounts.ConversionClearing}
	}
	return out
}

// shouldValidateExchange limits exchange validation to charges where both
// sides of the paper trail exist (or to conversion-style charges). A
// transactions-only foreign charge legitimately awaits its invoice; its open
// counterparty exposure is not an imbalance.
func (s *Service) shouldValidateExchange(bc buildContext) bool {
	switch bc.charge.Kind {
	case KindConversion, KindInternalTransfer:
		return true
	case KindCommon, KindDividend, KindBusinessTrip:
	default:
		return false
	}
	hasDocs := len(bc.dividends) > 0 || len(bc.tripExpenses) > 0
	for _, doc := range bc.documents {
		if doc.Type.IsAccounting() {
			hasDocs = true
			break
		}
	}
	return hasDocs && len(bc.transactions) > 0
}

func reconcileMarkers(ctx context.Context, tx TxRepository, chargeID uuid.UUID, want []uuid.UUID) error {
	existing, err := tx.ListUnbalancedBusinesses(ctx, chargeID)
	if err != nil {
		return err
	}
	wanted := make(map[uuid.UUID]struct{}, len(want))
	for _, id := range want {
		wanted[id] = struct{}{}
	}
	for _, marker := range existing {
		if _, still := wanted[marker.BusinessID]; still {
			// Leave the row untouched to preserve any human-entered remark.
			delete(wanted, marker.BusinessID)
			continue
		}
		if err := tx.DeleteUnbalancedBusiness(ctx, chargeID, marker.BusinessID); err != nil {
			return err
		}
	}
	missing := make([]uuid.UUID, 0, len(wanted))
	for id := range wanted {
		missing = append(missing, id)
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].String() < missing[j].String() })
	for _, id := range missing {
		if err := tx.InsertUnbalancedBusiness(ctx, UnbalancedBusiness{ChargeID: chargeID, BusinessID: id}); err != nil {
			return err
		}
	}
	return nil
}

// DeleteChargeState removes a charge's ledger rows, markers and associations.
// The cleanup steps are independent; each failure is reported with its step
// name and any failure fails the deletion as a whole.
func (s *Service) DeleteChargeState(ctx context.Context, chargeID uuid.UUID) error {
	recorded, err := s.repo.CountLedgerRecords(ctx, chargeID)
	if err != nil {
		return fmt.Errorf("ledger: count records for %s: %w", chargeID, err)
	}

	type step struct {
		name string
		fn   func(context.Context, uuid.UUID) error
	}
	steps := []step{
		{"ledger records", s.repo.DeleteLedgerRecords},
		{"unbalanced markers", s.repo.DeleteUnbalancedBusinesses},
		{"tags", s.repo.DeleteChargeTags},
		{"business trip link", s.repo.DeleteBusinessTripLink},
		{"charge spread", s.repo.DeleteChargeSpread},
	}

	g, ctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	var failures []string
	for _, st := range steps {
		g.Go(func() error {
			if err := st.fn(ctx, chargeID); err != nil {
				mu.Lock()
				failures = append(failures, fmt.Sprintf("%s: %v", st.name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if len(failures) > 0 {
		sort.Strings(failures)
		return fmt.Errorf("ledger: delete charge state %s: %s", chargeID, strings.Join(failures, "; "))
	}
	s.logger.Info("charge ledger state deleted",
		slog.String("charge_id", chargeID.String()),
		slog.Int("records_removed", recorded))
	return nil
}
