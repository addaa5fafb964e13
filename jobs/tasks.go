// Package jobs contains the background task definitions and the Asynq worker
// wiring.
package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeLedgerRegenerate is the task type for regenerating charge
	// ledgers in the background.
	TaskTypeLedgerRegenerate = "ledger:regenerate"
)

// LedgerRegeneratePayload names the charges whose ledgers should be rebuilt.
type LedgerRegeneratePayload struct {
	ChargeIDs []uuid.UUID `json:"charge_ids"`
	Persist   bool        `json:"persist"`
	Force     bool        `json:"force"`
}

// NewLedgerRegenerateTask constructs an Asynq task.
func NewLedgerRegenerateTask(payload LedgerRegeneratePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLedgerRegenerate, data), nil
}
