package billing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInsufficientFunds is returned by wallet decreases that would push
	// the balance below zero. The balance is left untouched.
	ErrInsufficientFunds = errors.New("insufficient wallet balance")

	// ErrNonPositiveAmount rejects zero or negative wallet mutations.
	ErrNonPositiveAmount = errors.New("amount must be positive")

	// ErrAlreadyProcessed marks approval/rejection attempts against a
	// terminal invoice. Benign: no side effects were run.
	ErrAlreadyProcessed = errors.New("invoice already processed")
)

// IncompleteDetailsError reports plan details missing fields required by
// their declared invoice type. The invoice stays pending so an admin can
// fix the data.
type IncompleteDetailsError struct {
	InvoiceType InvoiceType
	Missing     []string
}

func (e *IncompleteDetailsError) Error() string {
	return fmt.Sprintf("invoice type %s missing required fields: %s",
		e.InvoiceType, strings.Join(e.Missing, ", "))
}

func incompleteDetails(t InvoiceType, fields ...string) error {
	return &IncompleteDetailsError{InvoiceType: t, Missing: fields}
}

// FulfillmentError wraps a failed external panel call. The invoice is left
// pending and the admin may retry once the panel recovers.
type FulfillmentError struct {
	Step string
	Err  error
}

func (e *FulfillmentError) Error() string {
	return fmt.Sprintf("fulfillment %s failed: %v", e.Step, e.Err)
}

func (e *FulfillmentError) Unwrap() error { return e.Err }

func fulfillmentErr(step string, err error) error {
	return &FulfillmentError{Step: step, Err: err}
}
