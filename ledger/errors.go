package ledger

import (
	"errors"
	"fmt"

	"tripvault/db/db"
	"tripvault/metrics"
)

// ValidationError rejects caller input. Total is set when split percentages do
// not add up, so the caller can show the actual sum.
type ValidationError struct {
	Field   string
	Message string
	Total   *float64
}

func (e *ValidationError) Error() string {
	if e.Total != nil {
		return fmt.Sprintf("%s: %s (total %.2f)", e.Field, e.Message, *e.Total)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

type AuthorizationError struct {
	UserID string
	Action string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %s is not allowed to %s", e.UserID, e.Action)
}

const (
	resourceTrip    = "trip"
	resourceExpense = "expense"
	resourceMember  = "member"
	resourceSplit   = "split"
	resourcePayment = "payment settings"
)

func invalid(field, message string) *ValidationError {
	metrics.ValidationFailure(field)
	return &ValidationError{Field: field, Message: message}
}

func invalidTotal(field, message string, total float64) *ValidationError {
	metrics.ValidationFailure(field)
	return &ValidationError{Field: field, Message: message, Total: &total}
}

func denied(userID, action string) *AuthorizationError {
	return &AuthorizationError{UserID: userID, Action: action}
}

// storeErr turns a store not-found into a NotFoundError and wraps anything
// else.
func storeErr(err error, resource, id string) error {
	if errors.Is(err, db.ErrNotFound) {
		return &NotFoundError{Resource: resource, ID: id}
	}
	return fmt.Errorf("%s %s: %w", resource, id, err)
}
