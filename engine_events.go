package goIdentity

import (
	"context"
	"errors"
)

// publish stamps the event with the engine clock and the caller IP from ctx
// before handing it to the bus. Events never block the calling operation.
func (e *Engine) publish(ctx context.Context, event Event) {
	if e == nil || e.bus == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	e.bus.Publish(ctx, event)
}

// errorCode maps an operation error to the stable code carried in
// [Event.Error]. Sinks match on these codes, so they must not change.
func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountLocked):
		return "account_locked"
	case errors.Is(err, ErrAccountDisabled):
		return "account_disabled"
	case errors.Is(err, ErrMFARequired):
		return "mfa_required"
	case errors.Is(err, ErrMFAInvalid):
		return "mfa_invalid"
	case errors.Is(err, ErrMFANotEnabled):
		return "mfa_not_enabled"
	case errors.Is(err, ErrDuplicateUsername):
		return "duplicate_username"
	case errors.Is(err, ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, ErrWeakPassword):
		return "weak_password"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrSessionRevoked):
		return "session_revoked"
	case errors.Is(err, ErrTokenNotFound):
		return "token_not_found"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrTokenRevoked):
		return "token_revoked"
	case errors.Is(err, ErrTokenSuspended):
		return "token_suspended"
	case errors.Is(err, ErrTokenUseExceeded):
		return "token_use_exceeded"
	case errors.Is(err, ErrTokenNotActive):
		return "token_not_active"
	case errors.Is(err, ErrOriginDenied):
		return "origin_denied"
	case errors.Is(err, ErrScopeInsufficient):
		return "scope_insufficient"
	case errors.Is(err, ErrNotRefreshToken):
		return "not_refresh_token"
	case errors.Is(err, ErrClientMismatch):
		return "client_mismatch"
	case errors.Is(err, ErrUnsupportedAuthMethod):
		return "unsupported_auth_method"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrEngineClosed):
		return "engine_closed"
	default:
		return "internal_error"
	}
}
