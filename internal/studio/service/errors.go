package service

import (
	"errors"
	"fmt"
)

// ============================================================
// Errors
// ============================================================

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	// ErrBusy — такой же запрос этого редактора ещё выполняется.
	ErrBusy = errors.New("request already in flight")
	// ErrStale — ответ пришёл после сброса сессии или более новой загрузки.
	ErrStale = errors.New("editor changed while request was in flight")
)

// TransientError — сбой внешнего вызова (хранилище, загрузка, примерка).
// Повторяется пользователем вручную.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}
