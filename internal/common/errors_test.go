package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	verr := &ValidationError{}
	assert.NoError(t, verr.OrNil())

	verr.Add("brand", "brand is required")
	verr.Add("brand", "ignored")
	verr.Check("amount", errors.New("amount must be between -1 and 1000000"))
	verr.Check("model", nil)

	err := verr.OrNil()
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, "validation failed: amount: amount must be between -1 and 1000000; brand: brand is required", err.Error())

	var target *ValidationError
	assert.True(t, errors.As(fmt.Errorf("create order: %w", err), &target))
	assert.Len(t, target.Fields, 2)
}

func TestStoreError(t *testing.T) {
	assert.NoError(t, StoreError("op", nil))

	wrapped := StoreError("list orders", errors.New("connection refused"))
	assert.ErrorIs(t, wrapped, ErrStoreUnavailable)
	assert.Contains(t, wrapped.Error(), "connection refused")

	assert.Equal(t, ErrTenantNotFound, StoreError("op", ErrTenantNotFound))
	assert.Equal(t, context.Canceled, StoreError("op", context.Canceled))

	deadline := StoreError("op", context.DeadlineExceeded)
	assert.ErrorIs(t, deadline, ErrStoreUnavailable)
	assert.ErrorIs(t, deadline, context.DeadlineExceeded)
}
