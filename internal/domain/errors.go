package domain

import "errors"

var (
	// ErrUnsupportedFormat is returned by the loader for file extensions outside the allow-list.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrBackendUnavailable wraps network, auth and timeout failures of the embedding,
	// vector store and generation services.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrUnsafeExpression rejects calculator input containing characters outside the allow-list.
	ErrUnsafeExpression = errors.New("unsafe expression")
	// ErrDivisionByZero is reported by the calculator.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrDimensionMismatch is returned when a vector does not match the collection dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidWindow is returned for chunk sizes and overlaps that cannot form a window.
	ErrInvalidWindow = errors.New("invalid chunk window")
	// ErrEmptyQuestion is returned when the question is blank.
	ErrEmptyQuestion = errors.New("question is empty")
)
