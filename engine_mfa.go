package goIdentity

import "context"

// EnableMFA describes the enablemfa operation and its observable behavior.
//
// EnableMFA may return an error when input validation, dependency calls, or security checks fail.
// EnableMFA does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A fresh shared secret is generated on every call, so re-enabling rotates
// the secret and invalidates previously provisioned authenticator entries.
// The returned values are the base32 secret and the otpauth:// provisioning
// URI for authenticator apps.
//
//	Docs: docs/engine.md
func (e *Engine) EnableMFA(ctx context.Context, userID string) (string, string, error) {
	if err := e.guard(); err != nil {
		return "", "", err
	}

	u, err := e.users.ByID(ctx, userID)
	if err != nil {
		return "", "", err
	}
	if !u.Active {
		return "", "", ErrAccountDisabled
	}

	_, secret, err := e.totp.GenerateSecret()
	if err != nil {
		return "", "", err
	}
	if err := e.users.SetMFA(ctx, userID, true, secret); err != nil {
		return "", "", err
	}

	e.metricInc(MetricMFAEnabled)
	e.publish(ctx, Event{
		Type:    EventMFAEnabled,
		UserID:  userID,
		Success: true,
	})

	return secret, e.totp.ProvisionURI(secret, u.Username), nil
}

// DisableMFA describes the disablemfa operation and its observable behavior.
//
// DisableMFA may return an error when input validation, dependency calls, or security checks fail.
// DisableMFA does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
//	Docs: docs/engine.md
func (e *Engine) DisableMFA(ctx context.Context, userID string) error {
	if err := e.guard(); err != nil {
		return err
	}

	u, err := e.users.ByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.MFAEnabled {
		return ErrMFANotEnabled
	}

	if err := e.users.SetMFA(ctx, userID, false, ""); err != nil {
		return err
	}

	e.metricInc(MetricMFADisabled)
	e.publish(ctx, Event{
		Type:    EventMFADisabled,
		UserID:  userID,
		Success: true,
	})

	return nil
}

// VerifyMFACode describes the verifymfacode operation and its observable behavior.
//
// VerifyMFACode may return an error when input validation, dependency calls, or security checks fail.
// VerifyMFACode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The code is accepted for the current time step and the configured skew on
// either side. A wrong code is a false result, not an error; errors are
// reserved for accounts without MFA and infrastructure failures. This is
// the standalone check: it does not touch lockout counters the way the
// login path does.
//
//	Docs: docs/engine.md
func (e *Engine) VerifyMFACode(ctx context.Context, userID, code string) (bool, error) {
	if err := e.guard(); err != nil {
		return false, err
	}

	u, err := e.users.ByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if !u.MFAEnabled {
		return false, ErrMFANotEnabled
	}

	secret, err := e.totp.DecodeSecret(u.MFASecret)
	if err != nil {
		return false, err
	}

	valid, _, err := e.totp.VerifyCode(secret, code, e.now())
	if err != nil {
		return false, err
	}

	if valid {
		e.metricInc(MetricMFAVerifySuccess)
	} else {
		e.metricInc(MetricMFAVerifyFailure)
	}
	return valid, nil
}
