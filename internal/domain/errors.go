package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrInvalidPlan неизвестный идентификатор плана
	ErrInvalidPlan = errors.New("invalid plan type")

	// ErrUnauthenticated нет сессии пользователя
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden пользователь не может действовать от имени другого
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate дубликат записи
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidInput неверные входные данные
	ErrInvalidInput = errors.New("invalid input data")

	// ErrStoreFailure ошибка ввода-вывода хранилища
	ErrStoreFailure = errors.New("store failure")

	// ErrUnexpected все остальное
	ErrUnexpected = errors.New("unexpected error")

	// ErrSubscriptionRequired нет активной подписки
	ErrSubscriptionRequired = errors.New("active subscription required")

	// ErrWebhookValidationFailed не удалось проверить подпись вебхука
	ErrWebhookValidationFailed = errors.New("webhook validation failed")
)

// StoreError ошибка хранилища с названием операции
type StoreError struct {
	Op  string
	Err error
}

// Error реализует интерфейс error
func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Unwrap возвращает исходную ошибку драйвера
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is позволяет сравнивать с ErrStoreFailure
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreFailure
}

// NewStoreError оборачивает ошибку драйвера
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// NotFoundError представляет ошибку "не найдено"
type NotFoundError struct {
	Entity string
	Key    string
}

// Error реализует интерфейс error
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

// Is проверяет, является ли ошибка ошибкой типа "не найдено"
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError создает новую ошибку "не найдено"
func NewNotFoundError(entity, key string) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: key}
}

// DuplicateError представляет ошибку дубликата
type DuplicateError struct {
	Entity string
	Field  string
	Value  string
}

// Error реализует интерфейс error
func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s with %s '%s' already exists", e.Entity, e.Field, e.Value)
}

// Is проверяет, является ли ошибка ошибкой дубликата
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// NewDuplicateError создает новую ошибку дубликата
func NewDuplicateError(entity, field, value string) *DuplicateError {
	return &DuplicateError{Entity: entity, Field: field, Value: value}
}
