package models

import (
	"encoding/json"
	"time"
)

// AutomationLogStatus matches the automation_log_status ENUM in the database.
type AutomationLogStatus string

const (
	AutomationPending   AutomationLogStatus = "pending"
	AutomationCompleted AutomationLogStatus = "completed"
	AutomationFailed    AutomationLogStatus = "failed"
)

// Automation run types recorded in the log.
const (
	AutomationTypeReconcile    = "status_reconcile"
	AutomationTypeFinalization = "competition_finalization"
	AutomationTypeAggregation  = "ranking_aggregation"
)

// AutomationLogEntry records one reconciliation/finalization/aggregation run.
// Append-only: after a row reaches completed or failed it is never updated
// again except to fill in executed_at and error_message.
type AutomationLogEntry struct {
	ID               int                 `json:"id" db:"id"`
	Type             string              `json:"type" db:"type"`
	Status           AutomationLogStatus `json:"status" db:"status"`
	ScheduledTime    time.Time           `json:"scheduled_time" db:"scheduled_time"`
	ExecutedAt       *time.Time          `json:"executed_at,omitempty" db:"executed_at"`
	ErrorMessage     *string             `json:"error_message,omitempty" db:"error_message"`
	AffectedUsers    int                 `json:"affected_users" db:"affected_users"`
	SettingsSnapshot json.RawMessage     `json:"settings_snapshot,omitempty" db:"settings_snapshot"`
}
