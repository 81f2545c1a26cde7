package middleware

import (
	"errors"
	"net/http"

	"servicecrm/internal/common"
)

// StatusFor maps a domain error to its HTTP status code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, common.ErrValidationFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrTenantNotFound),
		errors.Is(err, common.ErrNotFound),
		errors.Is(err, common.ErrMemberNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrAlreadyMember),
		errors.Is(err, common.ErrAdminCannotLeave),
		errors.Is(err, common.ErrCannotRemoveSelf),
		errors.Is(err, common.ErrNotAMember):
		return http.StatusConflict
	case errors.Is(err, common.ErrNoActiveTenant):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode is the machine-readable code sent in the error envelope.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, common.ErrValidationFailed):
		return "VALIDATION_FAILED"
	case errors.Is(err, common.ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, common.ErrTenantNotFound):
		return "SERVICE_CENTER_NOT_FOUND"
	case errors.Is(err, common.ErrMemberNotFound):
		return "MEMBER_NOT_FOUND"
	case errors.Is(err, common.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, common.ErrAlreadyMember):
		return "ALREADY_MEMBER"
	case errors.Is(err, common.ErrAdminCannotLeave):
		return "ADMIN_CANNOT_LEAVE"
	case errors.Is(err, common.ErrCannotRemoveSelf):
		return "CANNOT_REMOVE_SELF"
	case errors.Is(err, common.ErrNotAMember):
		return "NOT_A_MEMBER"
	case errors.Is(err, common.ErrNoActiveTenant):
		return "NO_ACTIVE_SERVICE_CENTER"
	case errors.Is(err, common.ErrStoreUnavailable):
		return "STORE_UNAVAILABLE"
	default:
		return "SERVER_ERROR"
	}
}
