package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/Urigo/accounter-fullstack-sub017/internal/ledger"
	"github.com/Urigo/accounter-fullstack-sub017/internal/shared"
)

// LedgerRegenerator regenerates one charge's ledger.
type LedgerRegenerator interface {
	Generate(ctx context.Context, chargeID uuid.UUID, opts ledger.GenerateOptions) (ledger.GeneratedLedger, error)
}

// NewLedgerRegenerateHandler returns the Asynq handler for
// TaskTypeLedgerRegenerate. Charges are processed independently: a validation
// failure on one charge is logged and skipped, a busy charge requeues the
// task, and only infrastructure failures fail the whole batch.
func NewLedgerRegenerateHandler(service LedgerRegenerator, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload LedgerRegeneratePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		for _, chargeID := range payload.ChargeIDs {
			result, err := service.Generate(ctx, chargeID, ledger.GenerateOptions{
				Persist: payload.Persist,
				Force:   payload.Force,
			})
			switch {
			case err == nil:
				logger.Info("ledger regenerated",
					slog.String("charge_id", chargeID.String()),
					slog.Bool("balanced", result.Balance.IsBalanced),
					slog.Bool("persisted", result.Persisted))
			case errors.Is(err, shared.ErrChargeBusy):
				return err
			default:
				var vErr *ledger.ValidationError
				if errors.As(err, &vErr) || errors.Is(err, ledger.ErrChargeNotFound) {
					logger.Warn("skipping charge",
						slog.String("charge_id", chargeID.String()),
						slog.Any("error", err))
					continue
				}
				return err
			}
		}
		return nil
	}
}
