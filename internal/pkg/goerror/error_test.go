package goerror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "business", err: NewBusiness("queue full", CodeTooManyRequest), want: CodeTooManyRequest},
		{name: "wrapped business", err: fmt.Errorf("dispatch: %w", NewBusiness("dup", CodeConflict)), want: CodeConflict},
		{name: "not found sentinel", err: fmt.Errorf("load: %w", ErrNotFound), want: CodeNotFound},
		{name: "conflict sentinel", err: ErrConflict, want: CodeConflict},
		{name: "plain", err: errors.New("boom"), want: CodeInternal},
		{name: "format", err: NewInvalidFormat("unsupported"), want: CodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestError_MessageAndUnwrap(t *testing.T) {
	cause := errors.New("unsupported extension .xls")
	err := NewBusinessWrap(cause, "cannot ingest batch", CodeInvalidFormat)

	assert.Equal(t, "cannot ingest batch: unsupported extension .xls", err.Error())
	assert.ErrorIs(t, err, cause)

	var ge *Error
	assert.True(t, errors.As(err, &ge))
	assert.Equal(t, 2, ge.ExitCode())
	assert.Equal(t, TypeBusiness, ge.Type())
}

func TestNewInvalidInput_Fields(t *testing.T) {
	err := NewInvalidInput(nil, "batch_id", "must be positive")

	var ge *Error
	assert.True(t, errors.As(err, &ge))
	assert.Equal(t, map[string]string{"batch_id": "must be positive"}, ge.Fields())
	assert.Equal(t, CodeInvalidInput, ge.Code())

	odd := NewInvalidInput(nil, "only-key")
	assert.Equal(t, CodeInvalidFormat, CodeOf(odd))
}
