package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTxFailed            = errors.New("transaction failed")
	ErrAlreadySettled      = errors.New("poll already settled")
	ErrAlreadyVoted        = errors.New("voter already voted on this poll")
	ErrPoolFrozen          = errors.New("pool is frozen")
)

// ValidationError es un input inválido: siempre recuperable y sin mutar estado.
type ValidationError struct {
	Field  string
	Reason string
	Err    error // causa opcional (ErrInsufficientBalance, ErrAlreadyVoted, ...)
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid crea un ValidationError sin causa.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidErr crea un ValidationError que envuelve un sentinel.
func InvalidErr(field, reason string, cause error) error {
	return &ValidationError{Field: field, Reason: reason, Err: cause}
}

// ConsistencyError señala un error de programación del caller, por ejemplo
// liquidar dos veces o liquidar un poll que todavía no es final.
type ConsistencyError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency: %s: %s", e.Op, e.Reason)
}

func (e *ConsistencyError) Unwrap() error { return e.Err }

// IsValidation devuelve true si err (o algo que envuelve) es un ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConsistency devuelve true si err (o algo que envuelve) es un ConsistencyError.
func IsConsistency(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}
