package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/doarsal/readymarket-backend-sub002/internal/models"
	"github.com/doarsal/readymarket-backend-sub002/internal/services"
)

// provisionRetryDelay spaces consecutive attempts for the same order.
const provisionRetryDelay = 5 * time.Minute

// ProvisionOrderArgs defines the arguments for a provisioning task
type ProvisionOrderArgs struct {
	OrderID      uint `json:"order_id"`
	AttemptCount int  `json:"attempt_count"`
}

// ProvisionOrderTaskDef encapsulates the provisioning attempt logic
type ProvisionOrderTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *ProvisionOrderTaskDef) TaskID() string {
	return "provision_order"
}

// CreateTask builds a ScheduledTask record for this task
func (t *ProvisionOrderTaskDef) CreateTask(orderID uint) (*models.ScheduledTask, error) {
	args := ProvisionOrderArgs{OrderID: orderID, AttemptCount: 1}
	return BuildScheduledTask(t.TaskID(), args, time.Now(), nil, models.ScheduledTaskTypeOneTime, 3)
}

// HandleExecution runs one provisioning attempt. A failed attempt leaves the
// order in processing and, while attempts remain, re-enqueues itself; after
// the last attempt the task ends in failure and operators act on the alert
// the orchestrator already fired.
func (t *ProvisionOrderTaskDef) HandleExecution(ctx context.Context, deps *Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	argsBytes, err := json.Marshal(task.Arguments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args: %w", err)
	}

	var parsedArgs ProvisionOrderArgs
	if err := json.Unmarshal(argsBytes, &parsedArgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}
	if parsedArgs.OrderID == 0 {
		return nil, fmt.Errorf("missing order_id argument")
	}

	provErr := deps.Provisioner.ProvisionOrder(ctx, parsedArgs.OrderID)
	if provErr == nil {
		return map[string]interface{}{
			"status":   "success",
			"order_id": parsedArgs.OrderID,
			"attempt":  parsedArgs.AttemptCount,
		}, nil
	}

	var provDetail *services.ProvisioningError
	step := ""
	if errors.As(provErr, &provDetail) {
		step = provDetail.Step
	}

	if parsedArgs.AttemptCount < task.MaxAttempt {
		log.Printf("provisioning order %d failed (attempt %d), rescheduling", parsedArgs.OrderID, parsedArgs.AttemptCount)

		newArgs := parsedArgs
		newArgs.AttemptCount = parsedArgs.AttemptCount + 1
		nextRun := time.Now().Add(provisionRetryDelay)

		newTask, err := BuildScheduledTask(t.TaskID(), newArgs, nextRun, nil, models.ScheduledTaskTypeOneTime, task.MaxAttempt)
		if err == nil {
			deps.DB.Create(newTask)
		} else {
			log.Printf("failed to create retry task: %v", err)
		}
	} else {
		log.Printf("provisioning order %d failed after %d attempts", parsedArgs.OrderID, parsedArgs.AttemptCount)
	}

	return map[string]interface{}{
		"status":   "failure",
		"order_id": parsedArgs.OrderID,
		"attempt":  parsedArgs.AttemptCount,
		"step":     step,
	}, provErr
}

// ProvisionOrderTask is the singleton instance of ProvisionOrderTaskDef
var ProvisionOrderTask = &ProvisionOrderTaskDef{}
