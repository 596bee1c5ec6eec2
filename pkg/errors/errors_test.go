package errors

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewError tests the basic creation of errors.
func TestNewError(t *testing.T) {
	tests := []struct {
		name    string
		code    ErrorCode
		message string
	}{
		{
			name:    "InvalidConfig",
			code:    InvalidConfig,
			message: "dimension must be positive",
		},
		{
			name:    "ContractViolation",
			code:    ContractViolation,
			message: "tell without matching ask",
		},
		{
			name:    "InsufficientHistory",
			code:    InsufficientHistory,
			message: "recommend before any observation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message)

			customErr, ok := err.(*Error)

			assert.True(t, ok, "should be a custom *Error")
			assert.Equal(t, tt.code, customErr.Code())
			assert.Equal(t, tt.message, customErr.Error())

			// Test nil original error for new errors
			assert.Nil(t, customErr.Unwrap())
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(InvalidConfig, "num workers must be >= 1, got %d", 0)
	customErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, InvalidConfig, customErr.Code())
	assert.Equal(t, "num workers must be >= 1, got 0", customErr.Error())
}

// TestWrapError tests error wrapping functionality.
func TestWrapError(t *testing.T) {
	originalErr := stderrors.New("original error")

	tests := []struct {
		name       string
		err        error
		code       ErrorCode
		wrapMsg    string
		expectNil  bool
		expectCode ErrorCode
	}{
		{
			name:       "Wrap normal error",
			err:        originalErr,
			code:       InvalidConfig,
			wrapMsg:    "config rejected",
			expectNil:  false,
			expectCode: InvalidConfig,
		},
		{
			name:      "Wrap nil error",
			err:       nil,
			code:      InvalidConfig,
			wrapMsg:   "config rejected",
			expectNil: true,
		},
		{
			name:       "Wrap custom error",
			err:        New(SolverFailed, "batch rejected"),
			code:       ContractViolation,
			wrapMsg:    "tell failed",
			expectNil:  false,
			expectCode: ContractViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := Wrap(tt.err, tt.code, tt.wrapMsg)

			if tt.expectNil {
				assert.Nil(t, wrapped)
				return
			}

			assert.NotNil(t, wrapped)

			ourErr := wrapped.(*Error)
			assert.Equal(t, tt.expectCode, ourErr.Code())
			assert.Contains(t, ourErr.Error(), tt.wrapMsg)

			// Verify original error is preserved
			unwrapped := ourErr.Unwrap()
			if tt.err != nil {
				assert.Equal(t, tt.err.Error(), unwrapped.Error())
			}
		})
	}
}

// TestErrorInterfaces tests compliance with Go error interfaces.
func TestErrorInterfaces(t *testing.T) {
	t.Run("errors.Is support", func(t *testing.T) {
		err1 := New(ContractViolation, "first")
		err2 := New(ContractViolation, "second")
		err3 := New(InsufficientHistory, "third")

		assert.True(t, stderrors.Is(err1, err2),
			"Errors with same code should match with Is")
		assert.False(t, stderrors.Is(err1, err3),
			"Errors with different codes should not match with Is")
	})

	t.Run("errors.As support", func(t *testing.T) {
		originalErr := New(SolverFailed, "original")
		wrappedErr := Wrap(originalErr, ContractViolation, "wrapped")

		var customErr *Error
		assert.True(t, stderrors.As(wrappedErr, &customErr),
			"Should be able to extract custom error type")
		assert.Equal(t, ContractViolation, customErr.Code())
	})

	t.Run("error unwrapping", func(t *testing.T) {
		baseErr := stderrors.New("base error")
		wrapped := Wrap(baseErr, InvalidConfig, "wrapped error")

		unwrapped := stderrors.Unwrap(wrapped)
		assert.Equal(t, baseErr.Error(), unwrapped.Error())
	})
}

// TestErrorString tests the string representation of errors.
func TestErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{
			name:     "Simple error",
			err:      New(InvalidConfig, "budget must be non-negative"),
			contains: []string{"budget must be non-negative"},
		},
		{
			name: "Wrapped error",
			err: Wrap(
				stderrors.New("original problem"),
				InvalidConfig,
				"config rejected",
			),
			contains: []string{
				"config rejected",
				"original problem",
			},
		},
		{
			name: "Multiple wraps",
			err: Wrap(
				Wrap(
					stderrors.New("root cause"),
					SolverFailed,
					"batch rejected",
				),
				ContractViolation,
				"tell failed",
			),
			contains: []string{
				"tell failed",
				"batch rejected",
				"root cause",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errString := tt.err.Error()
			for _, str := range tt.contains {
				assert.Contains(t, errString, str,
					"Error string should contain expected message")
			}
		})
	}
}

func TestErrorFields(t *testing.T) {
	t.Run("Empty fields", func(t *testing.T) {
		err := New(ContractViolation, "error")
		customErr := err.(*Error)
		assert.Empty(t, customErr.Fields())
	})

	t.Run("Add fields", func(t *testing.T) {
		fields := Fields{
			"point":     "[1 2]",
			"num_ask":   42,
			"sequenced": true,
		}
		err := WithFields(New(ContractViolation, "error"), fields)
		customErr := err.(*Error)
		assert.Equal(t, fields, customErr.Fields())
	})

	t.Run("Merge fields", func(t *testing.T) {
		err := WithFields(New(ContractViolation, "error"), Fields{"a": 1})
		err = WithFields(err, Fields{"b": 2})
		customErr := err.(*Error)
		assert.Len(t, customErr.Fields(), 2)
		assert.Equal(t, 1, customErr.Fields()["a"])
		assert.Equal(t, 2, customErr.Fields()["b"])
	})

	t.Run("WithFields on non-Error type", func(t *testing.T) {
		baseErr := stderrors.New("base error")
		result := WithFields(baseErr, Fields{"context": "test"})
		customErr, ok := result.(*Error)
		require.True(t, ok)
		assert.Equal(t, Unknown, customErr.Code())
		assert.Equal(t, "test", customErr.Fields()["context"])
	})

	t.Run("Fields method returns copy not reference", func(t *testing.T) {
		err := WithFields(New(InvalidConfig, "test"), Fields{"key": "original"})
		customErr := err.(*Error)

		returnedFields := customErr.Fields()
		returnedFields["key"] = "modified"

		assert.Equal(t, "original", customErr.Fields()["key"])
	})
}

func TestHasCode(t *testing.T) {
	t.Run("direct code", func(t *testing.T) {
		err := New(InsufficientHistory, "no observations")
		assert.True(t, HasCode(err, InsufficientHistory))
		assert.False(t, HasCode(err, ContractViolation))
	})

	t.Run("wrapped code", func(t *testing.T) {
		err := Wrap(New(SolverFailed, "rejected"), ContractViolation, "tell")
		assert.True(t, HasCode(err, ContractViolation))
	})

	t.Run("plain error", func(t *testing.T) {
		assert.False(t, HasCode(stderrors.New("plain"), InvalidConfig))
	})

	t.Run("nil error", func(t *testing.T) {
		assert.False(t, HasCode(nil, InvalidConfig))
	})
}

func TestCheckContext(t *testing.T) {
	t.Run("live context", func(t *testing.T) {
		assert.NoError(t, CheckContext(context.Background(), "minimize"))
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := CheckContext(ctx, "minimize")
		require.Error(t, err)
		assert.True(t, HasCode(err, Canceled))
		assert.Contains(t, err.Error(), "minimize canceled")
	})
}
