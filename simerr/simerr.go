// Package simerr defines the error taxonomy shared by the EVM and Starknet
// simulation engines. A single funnel of error types means callers can
// errors.As into the variant they care about regardless of which VM ran.
package simerr

import "fmt"

// TransactionError means the call was delivered to the VM and the VM
// rejected or reverted it. GasUsed is nil when the VM could not determine
// a gas figure before failing (e.g. a pre-execution validation error).
type TransactionError struct {
	Data    string
	GasUsed *uint64
}

func NewTransactionError(data string, gasUsed *uint64) *TransactionError {
	return &TransactionError{Data: data, GasUsed: gasUsed}
}

func (e *TransactionError) Error() string {
	if e.GasUsed != nil {
		return fmt.Sprintf("transaction error: %s (gas_used=%d)", e.Data, *e.GasUsed)
	}
	return fmt.Sprintf("transaction error: %s", e.Data)
}

// StorageError means a remote state read failed before the VM ever ran.
type StorageError string

func NewStorageError(msg string) *StorageError {
	e := StorageError(msg)
	return &e
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage error: %s", string(*e)) }

// InitError means an engine or database could not be constructed.
type InitError string

func NewInitError(msg string) *InitError {
	e := InitError(msg)
	return &e
}

func (e *InitError) Error() string { return fmt.Sprintf("init error: %s", string(*e)) }

// AlreadyInitialized means a seed operation ran twice against the same
// mocked account or contract, which this core treats as a caller bug.
type AlreadyInitialized string

func NewAlreadyInitialized(msg string) *AlreadyInitialized {
	e := AlreadyInitialized(msg)
	return &e
}

func (e *AlreadyInitialized) Error() string {
	return fmt.Sprintf("already initialized: %s", string(*e))
}

// OverrideError means a caller-supplied override could not be applied,
// e.g. it targets an account the database has never seen.
type OverrideError string

func NewOverrideError(msg string) *OverrideError {
	e := OverrideError(msg)
	return &e
}

func (e *OverrideError) Error() string { return fmt.Sprintf("override error: %s", string(*e)) }

// StateError means the simulation database itself is inconsistent, e.g.
// a class hash could not be resolved or a storage slot layout disagreed
// with what the caller claimed.
type StateError string

func NewStateError(msg string) *StateError {
	e := StateError(msg)
	return &e
}

func (e *StateError) Error() string { return fmt.Sprintf("state error: %s", string(*e)) }
