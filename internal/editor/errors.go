package editor

import (
	"errors"
	"fmt"
)

// ============================================================
// Errors
// ============================================================

var (
	ErrNotFound = errors.New("object not found")
	ErrLocked   = errors.New("object is locked")
	// ErrStale — результат асинхронной операции пришёл после того, как сессия
	// была сброшена или начала более новую загрузку.
	ErrStale = errors.New("editor session changed")
)

// ValidationError — операция отклонена, состояние не изменилось.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// DeserializationError — документ проекта не удалось прочитать. Текущая сцена
// при этом остаётся нетронутой.
type DeserializationError struct {
	Index  int // -1, если ошибка не относится к конкретному объекту
	Reason string
	Err    error
}

func (e *DeserializationError) Error() string {
	msg := "deserialize: " + e.Reason
	if e.Index >= 0 {
		msg = fmt.Sprintf("deserialize: object %d: %s", e.Index, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// InvariantViolation — ошибка программиста (например, объект без тега).
// В strict-режиме сессия паникует с этим значением.
type InvariantViolation struct {
	Invariant string
	Detail    string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant %s violated: %s", e.Invariant, e.Detail)
}
