package common

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors surfaced by the core. Handlers map them to HTTP status codes.
var (
	ErrTenantNotFound       = errors.New("service center not found")
	ErrForbidden            = errors.New("forbidden")
	ErrNotFound             = errors.New("not found")
	ErrAdminCannotLeave     = errors.New("admin cannot leave the service center")
	ErrCannotRemoveSelf     = errors.New("cannot remove yourself, use leave instead")
	ErrNotAMember           = errors.New("user is not a member of the service center")
	ErrMemberNotFound       = errors.New("member not found")
	ErrAlreadyMember        = errors.New("user is already a member")
	ErrValidationFailed     = errors.New("validation failed")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
	ErrNoActiveTenant       = errors.New("no service center selected")
)

// ValidationError carries per-field messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// Add records a message for field, keeping the first one.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

// Check records err under field when it is non-nil.
func (e *ValidationError) Check(field string, err error) {
	if err != nil {
		e.Add(field, err.Error())
	}
}

// OrNil returns e when it holds at least one field message.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// StoreError wraps an infrastructure failure as ErrStoreUnavailable, keeping
// domain sentinels and caller cancellation untouched.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func isDomainError(err error) bool {
	for _, target := range []error{
		ErrTenantNotFound, ErrForbidden, ErrNotFound, ErrAdminCannotLeave,
		ErrCannotRemoveSelf, ErrNotAMember, ErrMemberNotFound, ErrAlreadyMember,
		ErrValidationFailed, ErrStoreUnavailable, ErrDuplicateOrderNumber,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
