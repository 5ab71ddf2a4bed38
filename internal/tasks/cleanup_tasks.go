package tasks

import (
	"context"
	"log"
	"time"

	"github.com/doarsal/readymarket-backend-sub002/internal/models"
)

// CleanupRecurrence is the default sweep schedule, an RFC 5545 RRULE.
const CleanupRecurrence = "FREQ=HOURLY;INTERVAL=1"

// staleCartAge is how long an untouched active cart survives past its
// expiry before the sweep abandons it.
const staleCartAge = 24 * time.Hour

// CleanupSessionsTaskDef sweeps expired payment sessions and abandons stale
// carts. Sessions are normally left to expire lazily; the sweep just keeps
// the tables from growing without bound.
type CleanupSessionsTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *CleanupSessionsTaskDef) TaskID() string {
	return "cleanup_sessions"
}

// CreateTask builds the recurring sweep task
func (t *CleanupSessionsTaskDef) CreateTask() (*models.ScheduledTask, error) {
	rule := CleanupRecurrence
	return BuildScheduledTask(t.TaskID(), map[string]interface{}{}, time.Now(), &rule, models.ScheduledTaskTypeRecurring, 1)
}

// HandleExecution deletes sessions past their expiry and abandons active
// carts whose expiry lapsed more than a day ago.
func (t *CleanupSessionsTaskDef) HandleExecution(ctx context.Context, deps *Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	now := time.Now()

	sessions := deps.DB.Where("expires_at < ?", now).Delete(&models.PaymentSession{})
	if sessions.Error != nil {
		return nil, sessions.Error
	}

	carts := deps.DB.Model(&models.Cart{}).
		Where("status = ? AND expires_at < ?", models.CartStatusActive, now.Add(-staleCartAge)).
		Update("status", models.CartStatusAbandoned)
	if carts.Error != nil {
		return nil, carts.Error
	}

	log.Printf("cleanup: removed %d expired sessions, abandoned %d stale carts", sessions.RowsAffected, carts.RowsAffected)

	return map[string]interface{}{
		"status":           "success",
		"sessions_removed": sessions.RowsAffected,
		"carts_abandoned":  carts.RowsAffected,
	}, nil
}

// CleanupSessionsTask is the singleton instance of CleanupSessionsTaskDef
var CleanupSessionsTask = &CleanupSessionsTaskDef{}
