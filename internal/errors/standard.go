// Package errors provides standardized error messaging shared across the
// allocator and its surrounding domain packages.
package errors

import (
	"fmt"
	"runtime"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategorySystem ErrorCategory = "SYSTEM"
	CategoryAlloc  ErrorCategory = "ALLOC"
)

// StandardError provides a consistent error format
type StandardError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Context  map[string]interface{}
	Caller   string
}

// Error implements the error interface
func (e *StandardError) Error() string {
	return fmt.Sprintf("[%s:%s] %s (caller: %s)", e.Category, e.Code, e.Message, e.Caller)
}

// NewStandardError creates a new standardized error
func NewStandardError(category ErrorCategory, code, message string, context map[string]interface{}) *StandardError {
	pc, _, _, ok := runtime.Caller(1)
	caller := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}

	return &StandardError{
		Category: category,
		Code:     code,
		Message:  message,
		Context:  context,
		Caller:   caller,
	}
}

// SystemFailure wraps a setup-time failure (file, mmap, TLS, network) from
// one of the domain-stack packages surrounding the allocator.
func SystemFailure(operation string, cause error) *StandardError {
	return NewStandardError(CategorySystem, "SYSTEM_FAILURE",
		fmt.Sprintf("%s failed: %v", operation, cause),
		map[string]interface{}{"operation": operation, "cause": cause.Error()})
}

func DoubleFree(handle uint32) *StandardError {
	return NewStandardError(CategoryAlloc, "DOUBLE_FREE",
		fmt.Sprintf("handle %d freed while not marked used (double free or foreign handle)", handle),
		map[string]interface{}{"handle": handle})
}

func PoolExhausted(maxAllocs uint32) *StandardError {
	return NewStandardError(CategoryAlloc, "POOL_EXHAUSTED",
		fmt.Sprintf("node pool exhausted at maxAllocs=%d", maxAllocs),
		map[string]interface{}{"maxAllocs": maxAllocs})
}

func RangeExhausted(size uint32) *StandardError {
	return NewStandardError(CategoryAlloc, "RANGE_EXHAUSTED",
		fmt.Sprintf("no free region satisfies requested size %d", size),
		map[string]interface{}{"size": size})
}
