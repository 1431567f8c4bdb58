package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/internal"
)

const metaSessionID = "session_id"

// Authenticate describes the authenticate operation and its observable behavior.
//
// Authenticate may return an error when input validation, dependency calls, or security checks fail.
// Authenticate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// MethodPassword reads Username, Password and, for MFA-enabled accounts,
// MFACode; MethodAPIKey reads APIKey. A full success opens a session and
// mints a session bearer plus refresh token pair. An MFA-enabled account
// authenticating without a code receives an [AuthPending] result with
// MFARequired set and a nil error; the caller resubmits the same
// credentials with the one-time code.
//
// Login failures collapse to [ErrInvalidCredentials] regardless of whether
// the username, the password, or the account state was at fault; the
// emitted event carries the distinct cause.
//
//	Docs: docs/engine.md
func (e *Engine) Authenticate(ctx context.Context, method AuthMethod, creds Credentials) (*AuthResult, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}

	switch method {
	case MethodPassword:
		return e.passwordLogin(ctx, creds)
	case MethodAPIKey:
		return e.apiKeyLogin(ctx, creds)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAuthMethod, method)
	}
}

func (e *Engine) passwordLogin(ctx context.Context, creds Credentials) (*AuthResult, error) {
	username := strings.ToLower(strings.TrimSpace(creds.Username))
	if username == "" || creds.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}

	now := e.now()

	u, err := e.users.ByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return e.refuseLogin(ctx, "", username, ErrInvalidCredentials, ErrInvalidCredentials)
		}
		return nil, err
	}

	if u.Locked(now) {
		return e.refuseLogin(ctx, u.ID, username, ErrAccountLocked, ErrAccountLocked)
	}
	if !u.Active {
		// The surface stays generic; only the event names the real cause.
		return e.refuseLogin(ctx, u.ID, username, ErrAccountDisabled, ErrInvalidCredentials)
	}

	ok, err := e.verifyPassword(ctx, creds.Password, u.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return e.failedAttempt(ctx, u, username, now, ErrInvalidCredentials)
	}

	// The password was right: the lockout counter and deadline clear
	// together, before any MFA exchange.
	if err := e.users.ResetAttempts(ctx, u.ID); err != nil {
		log.Print("goidentity: reset attempts: ", err)
	}

	if u.MFAEnabled {
		if creds.MFACode == "" {
			e.metricInc(MetricLoginMFARequired)
			return &AuthResult{
				Status:      AuthPending,
				UserID:      u.ID,
				MFARequired: true,
			}, nil
		}

		secret, err := e.totp.DecodeSecret(u.MFASecret)
		if err != nil {
			return nil, err
		}
		valid, _, err := e.totp.VerifyCode(secret, creds.MFACode, now)
		if err != nil || !valid {
			e.metricInc(MetricMFAVerifyFailure)
			return e.failedAttempt(ctx, u, username, now, ErrMFAInvalid)
		}
		e.metricInc(MetricMFAVerifySuccess)
	}

	method := MethodPassword
	if u.MFAEnabled {
		method = MethodMFA
	}
	return e.openSession(ctx, u, method, now)
}

func (e *Engine) apiKeyLogin(ctx context.Context, creds Credentials) (*AuthResult, error) {
	if creds.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrInvalidInput)
	}

	t, err := e.ValidateToken(ctx, creds.APIKey, ValidateRequest{})
	if err != nil {
		return e.refuseLogin(ctx, "", "", err, ErrInvalidCredentials)
	}
	if t.Kind != KindAPIKey {
		return e.refuseLogin(ctx, t.UserID, "", ErrInvalidCredentials, ErrInvalidCredentials)
	}

	now := e.now()

	u, err := e.users.ByID(ctx, t.UserID)
	if err != nil {
		return e.refuseLogin(ctx, t.UserID, "", err, ErrInvalidCredentials)
	}
	if u.Locked(now) {
		return e.refuseLogin(ctx, u.ID, u.Username, ErrAccountLocked, ErrInvalidCredentials)
	}
	if !u.Active {
		return e.refuseLogin(ctx, u.ID, u.Username, ErrAccountDisabled, ErrInvalidCredentials)
	}

	return e.openSession(ctx, u, MethodAPIKey, now)
}

// failedAttempt increments the lockout counter for a wrong password or MFA
// code. The attempt that crosses the threshold still reports its own
// failure; the lock is observed by the next one.
func (e *Engine) failedAttempt(ctx context.Context, u *User, username string, now time.Time, cause error) (*AuthResult, error) {
	_, lockedUntil, err := e.users.RecordFailure(ctx, u.ID, now,
		e.config.Lockout.MaxFailedAttempts, e.config.Lockout.LockoutDuration)
	if err != nil {
		log.Print("goidentity: record failed attempt: ", err)
	}
	if !lockedUntil.IsZero() {
		e.metricInc(MetricAccountLocked)
		e.publish(ctx, Event{
			Type:   EventUserLocked,
			UserID: u.ID,
			Metadata: map[string]string{
				"locked_until": lockedUntil.UTC().Format(time.RFC3339),
			},
		})
	}

	return e.refuseLogin(ctx, u.ID, username, cause, cause)
}

// refuseLogin publishes the failure event with the true cause and returns
// the surface error, which is usually the collapsed generic one.
func (e *Engine) refuseLogin(ctx context.Context, userID, username string, cause, surface error) (*AuthResult, error) {
	e.metricInc(MetricLoginFailure)
	event := Event{
		Type:   EventLoginFailed,
		UserID: userID,
		Error:  errorCode(cause),
	}
	if username != "" {
		event.Metadata = map[string]string{"username": username}
	}
	e.publish(ctx, event)

	return nil, surface
}

func (e *Engine) openSession(ctx context.Context, u *User, method AuthMethod, now time.Time) (*AuthResult, error) {
	sess := &Session{
		ID:           internal.NewSessionID(),
		UserID:       u.ID,
		Method:       method,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(e.config.Session.Lifetime),
		ClientIP:     clientIPFromContext(ctx),
		UserAgent:    userAgentFromContext(ctx),
		Active:       true,
	}
	if err := e.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}

	// The pair is tagged with the session id so Logout can find and revoke
	// it; rotation inherits the tag.
	scopes := e.scopesForRole(u.Role)
	meta := map[string]string{metaSessionID: sess.ID}

	bearer, err := e.issueToken(ctx, TokenRequest{
		Kind:     KindSession,
		UserID:   u.ID,
		Scopes:   scopes,
		Metadata: meta,
	})
	if err != nil {
		return nil, err
	}
	refresh, err := e.issueToken(ctx, TokenRequest{
		Kind:     KindRefresh,
		UserID:   u.ID,
		Scopes:   scopes,
		Metadata: cloneStringMap(meta),
	})
	if err != nil {
		return nil, err
	}

	if err := e.users.RecordLogin(ctx, u.ID, now); err != nil {
		log.Print("goidentity: record login: ", err)
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.publish(ctx, Event{
		Type:      EventSessionCreated,
		UserID:    u.ID,
		SessionID: sess.ID,
		Success:   true,
		Metadata: map[string]string{
			"method": method.String(),
		},
	})
	e.publish(ctx, Event{
		Type:      EventLogin,
		UserID:    u.ID,
		SessionID: sess.ID,
		TokenID:   bearer.ID,
		Success:   true,
		Metadata: map[string]string{
			"method": method.String(),
		},
	})

	return &AuthResult{
		Status:       AuthSuccess,
		UserID:       u.ID,
		SessionID:    sess.ID,
		Token:        bearer.Value,
		RefreshToken: refresh.Value,
		ExpiresAt:    bearer.ExpiresAt,
	}, nil
}

// AuthStatusFromError maps an authentication or validation error to the
// typed [AuthStatus] a transport layer would render.
func AuthStatusFromError(err error) AuthStatus {
	switch {
	case err == nil:
		return AuthSuccess
	case errors.Is(err, ErrAccountLocked):
		return AuthLocked
	case errors.Is(err, ErrMFARequired):
		return AuthPending
	case errors.Is(err, ErrSessionExpired), errors.Is(err, ErrTokenExpired):
		return AuthExpired
	case errors.Is(err, ErrSessionRevoked), errors.Is(err, ErrTokenRevoked):
		return AuthRevoked
	default:
		return AuthFailed
	}
}
