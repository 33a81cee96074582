package generic_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/leave-engine/generic"
)

func TestValidationError_WrapsCause(t *testing.T) {
	cause := &generic.NotFoundError{Kind: "employee", ID: "emp-404"}
	err := fmt.Errorf("create request: %w", &generic.ValidationError{
		Field:   "employee_id",
		Message: "unknown employee",
		Cause:   cause,
	})

	assert.True(t, errors.Is(err, generic.ErrValidation))
	assert.True(t, errors.Is(err, generic.ErrNotFound))
	assert.True(t, generic.IsClientError(err))
	assert.False(t, generic.IsNotFound(err), "bad reference supplied by the caller is a validation failure")

	var nf *generic.NotFoundError
	assert.ErrorAs(t, err, &nf)
	assert.Equal(t, "emp-404", nf.ID)
}

func TestNotFoundError(t *testing.T) {
	err := fmt.Errorf("get: %w", &generic.NotFoundError{Kind: "request", ID: "r1"})

	assert.True(t, generic.IsNotFound(err))
	assert.False(t, generic.IsClientError(err))
	assert.Equal(t, `get: request "r1" not found`, err.Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, generic.IsRetryable(fmt.Errorf("cas: %w", generic.ErrConcurrentModification)))
	assert.False(t, generic.IsRetryable(generic.ErrInvalidTransition))
}
