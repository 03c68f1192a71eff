// Package jobs runs the scheduled ledger maintenance tasks.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity recomputes balances from entries and reports drift.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskLedgerRecurring materializes recurring template transactions.
	TaskLedgerRecurring = "ledger:recurring"
)

// IntegrityPayload bounds one integrity sweep.
type IntegrityPayload struct {
	// OnlyActive limits the sweep to active accounts.
	OnlyActive bool `json:"only_active"`
}

// NewLedgerIntegrityTask constructs an integrity sweep task.
func NewLedgerIntegrityTask(onlyActive bool) (*asynq.Task, error) {
	data, err := json.Marshal(IntegrityPayload{OnlyActive: onlyActive})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// RecurringPayload is currently empty; the job discovers templates itself.
type RecurringPayload struct{}

// NewLedgerRecurringTask constructs a recurring materialization task.
func NewLedgerRecurringTask() (*asynq.Task, error) {
	data, err := json.Marshal(RecurringPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerRecurring, data), nil
}
