package models

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a malformed operator request
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// DataShapeError marks a feed record that cannot be normalized.
// The record is skipped; the rest of the batch proceeds.
type DataShapeError struct {
	Key    string
	Reason string
}

func (e *DataShapeError) Error() string {
	if e.Key == "" {
		return "invalid reading: " + e.Reason
	}
	return fmt.Sprintf("invalid reading %s: %s", e.Key, e.Reason)
}

func (e *DataShapeError) IsTransient() bool {
	return false
}

// PersistenceError wraps a store failure. For batch operations IDs lists the
// records that failed and Succeeded the ones that were applied.
type PersistenceError struct {
	Op        string
	IDs       []string
	Succeeded []string
	Err       error
}

func (e *PersistenceError) Error() string {
	if len(e.IDs) == 0 {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed for %d record(s) [%s]: %v",
		e.Op, len(e.IDs), strings.Join(e.IDs, ", "), e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) IsTransient() bool {
	return true
}

// ConfirmationTimeoutError is returned when the node does not confirm a WiFi
// change in time. Stored credentials have already been cleared when it is returned.
type ConfirmationTimeoutError struct {
	SSID    string
	Timeout time.Duration
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("device failed to confirm connection to %q within %s; credentials cleared", e.SSID, e.Timeout)
}

func (e *ConfirmationTimeoutError) IsTransient() bool {
	return true
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
