package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewTaskID generates a unique job-queue task identifier.
func NewTaskID() string {
	return uuid.NewString()
}

// NewCorrelationID generates a correlation ID tying a scheduled task back
// to the trigger that produced it, in the form "trigger-<id>-<timestamp>".
func NewCorrelationID(triggerID string) string {
	return fmt.Sprintf("trigger-%s-%d", triggerID, time.Now().UnixNano())
}
