package goIdentity

import "errors"

var (
	// ErrInvalidCredentials is an exported constant or variable used by the identity engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is an exported constant or variable used by the identity engine.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountDisabled is an exported constant or variable used by the identity engine.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrMFARequired is an exported constant or variable used by the identity engine.
	ErrMFARequired = errors.New("mfa code required")
	// ErrMFAInvalid is an exported constant or variable used by the identity engine.
	ErrMFAInvalid = errors.New("mfa code invalid")
	// ErrMFANotEnabled is an exported constant or variable used by the identity engine.
	ErrMFANotEnabled = errors.New("mfa not enabled")
	// ErrDuplicateUsername is an exported constant or variable used by the identity engine.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrDuplicateEmail is an exported constant or variable used by the identity engine.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrWeakPassword is an exported constant or variable used by the identity engine.
	ErrWeakPassword = errors.New("password does not meet policy")
	// ErrUserNotFound is an exported constant or variable used by the identity engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionNotFound is an exported constant or variable used by the identity engine.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is an exported constant or variable used by the identity engine.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionRevoked is an exported constant or variable used by the identity engine.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrTokenNotFound is an exported constant or variable used by the identity engine.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenExpired is an exported constant or variable used by the identity engine.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked is an exported constant or variable used by the identity engine.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenSuspended is an exported constant or variable used by the identity engine.
	ErrTokenSuspended = errors.New("token suspended")
	// ErrTokenNotActive is an exported constant or variable used by the identity engine.
	ErrTokenNotActive = errors.New("token not active")
	// ErrTokenUseExceeded is an exported constant or variable used by the identity engine.
	ErrTokenUseExceeded = errors.New("token usage limit exceeded")
	// ErrOriginDenied is an exported constant or variable used by the identity engine.
	ErrOriginDenied = errors.New("origin not permitted for token")
	// ErrScopeInsufficient is an exported constant or variable used by the identity engine.
	ErrScopeInsufficient = errors.New("token scopes insufficient")
	// ErrNotRefreshToken is an exported constant or variable used by the identity engine.
	ErrNotRefreshToken = errors.New("token is not a refresh token")
	// ErrClientMismatch is an exported constant or variable used by the identity engine.
	ErrClientMismatch = errors.New("client id mismatch")
	// ErrUnsupportedAuthMethod is an exported constant or variable used by the identity engine.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")
	// ErrConfiguration is an exported constant or variable used by the identity engine.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidInput is an exported constant or variable used by the identity engine.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable is an exported constant or variable used by the identity engine.
	ErrStoreUnavailable = errors.New("backing store unavailable")
	// ErrEngineClosed is an exported constant or variable used by the identity engine.
	ErrEngineClosed = errors.New("engine closed")
)
