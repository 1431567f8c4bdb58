package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/MrEthical07/goIdentity/internal"
)

// CreateUser describes the createuser operation and its observable behavior.
//
// CreateUser may return an error when input validation, dependency calls, or security checks fail.
// CreateUser does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The returned string is the new user's id. Username and email are
// normalized to lower case before the uniqueness check, so "Alice" and
// "alice" collide.
//
//	Docs: docs/engine.md
func (e *Engine) CreateUser(ctx context.Context, username, email, plainPassword string, role Role) (string, error) {
	if err := e.guard(); err != nil {
		return "", err
	}

	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" || strings.ContainsAny(username, " \t\n") {
		return "", fmt.Errorf("%w: username must be non-empty and contain no whitespace", ErrInvalidInput)
	}
	if !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: email is malformed", ErrInvalidInput)
	}
	if role >= roleCount {
		return "", fmt.Errorf("%w: unknown role", ErrInvalidInput)
	}

	if err := e.policy.Check(plainPassword); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	hash, err := e.pool.Hash(ctx, plainPassword)
	if err != nil {
		return "", err
	}

	u := &User{
		ID:           internal.NewUserID(),
		Username:     username,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    e.now(),
	}
	if err := e.users.Create(ctx, u); err != nil {
		return "", err
	}

	e.metricInc(MetricUserCreated)
	e.publish(ctx, Event{
		Type:    EventUserCreated,
		UserID:  u.ID,
		Success: true,
		Metadata: map[string]string{
			"role": role.String(),
		},
	})

	return u.ID, nil
}

// ChangePassword describes the changepassword operation and its observable behavior.
//
// ChangePassword may return an error when input validation, dependency calls, or security checks fail.
// ChangePassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A successful change is a bulk-revocation trigger: every token and session
// belonging to the user is invalidated, so stolen bearer credentials die
// with the old password.
//
//	Docs: docs/engine.md
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if err := e.guard(); err != nil {
		return err
	}

	u, err := e.users.ByID(ctx, userID)
	if err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		return err
	}

	ok, err := e.verifyPassword(ctx, oldPassword, u.PasswordHash)
	if err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		return err
	}
	if !ok {
		e.metricInc(MetricPasswordChangeFailure)
		return ErrInvalidCredentials
	}

	if err := e.policy.Check(newPassword); err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		return fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	hash, err := e.pool.Hash(ctx, newPassword)
	if err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		return err
	}
	if err := e.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		return err
	}

	e.revokeUserCredentials(ctx, userID, "password_changed")

	e.metricInc(MetricPasswordChangeSuccess)
	e.publish(ctx, Event{
		Type:    EventPasswordChanged,
		UserID:  userID,
		Success: true,
	})

	return nil
}

// DeactivateUser describes the deactivateuser operation and its observable behavior.
//
// DeactivateUser may return an error when input validation, dependency calls, or security checks fail.
// DeactivateUser does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The record is retained; deactivation is a flag flip plus the same bulk
// revocation ChangePassword performs. There is no hard delete.
//
//	Docs: docs/engine.md
func (e *Engine) DeactivateUser(ctx context.Context, userID string) error {
	if err := e.guard(); err != nil {
		return err
	}

	if _, err := e.users.ByID(ctx, userID); err != nil {
		return err
	}
	if err := e.users.SetActive(ctx, userID, false); err != nil {
		return err
	}

	e.revokeUserCredentials(ctx, userID, "user_deactivated")

	e.metricInc(MetricUserDeactivated)
	e.publish(ctx, Event{
		Type:    EventUserDeactivated,
		UserID:  userID,
		Success: true,
	})

	return nil
}

// revokeUserCredentials is the shared bulk-invalidation path used by
// password changes and deactivation. Failures are logged, not returned: the
// primary mutation has already committed, and the reaper picks up whatever a
// partial sweep left behind.
func (e *Engine) revokeUserCredentials(ctx context.Context, userID, reason string) {
	if _, err := e.RevokeUserTokens(ctx, userID, nil, reason, userID); err != nil && !errors.Is(err, ErrEngineClosed) {
		log.Print("goidentity: bulk token revocation: ", err)
	}
	if _, err := e.sessions.DeleteAllForUser(ctx, userID); err != nil {
		log.Print("goidentity: bulk session removal: ", err)
	}
}
