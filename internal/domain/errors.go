package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
	ErrQueueFull       = errors.New("queue full")
	ErrEngineTransient = errors.New("engine transient failure")
	ErrEngineFatal     = errors.New("engine fatal failure")
	ErrRetryExhausted  = errors.New("retries exhausted")
	ErrTimeout         = errors.New("job timed out")
	ErrCanceled        = errors.New("job canceled")
)
