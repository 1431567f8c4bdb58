//go:build integration
// +build integration

package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// TestEndToEndTokenLifecycle walks one credential through the whole journey
// against the Redis-backed stores: signup, login, bearer validation,
// rotation, replay rejection, logout.
func TestEndToEndTokenLifecycle(t *testing.T) {
	engine, _, cleanup := newIntegrationEngine(t)
	defer cleanup()
	ctx := context.Background()

	userID := createIntegrationUser(t, engine, "lifecycle", goIdentity.RoleDeveloper)

	res := loginIntegrationUser(t, engine, "lifecycle")
	require.Equal(t, userID, res.UserID)
	require.NotEmpty(t, res.SessionID)
	require.NotEmpty(t, res.Token)
	require.NotEmpty(t, res.RefreshToken)

	// The login bearer validates and carries the session tag.
	tok, err := engine.ValidateToken(ctx, res.Token, goIdentity.ValidateRequest{})
	require.NoError(t, err)
	require.Equal(t, goIdentity.KindSession, tok.Kind)
	require.Equal(t, res.SessionID, tok.Metadata["session_id"])

	// Rotation burns the presented refresh token and mints a successor pair
	// that keeps the session tag.
	pair, err := engine.RefreshToken(ctx, res.RefreshToken, "")
	require.NoError(t, err)
	require.Equal(t, goIdentity.KindAccess, pair.Access.Kind)
	require.Equal(t, goIdentity.KindRefresh, pair.Refresh.Kind)
	require.Equal(t, res.SessionID, pair.Refresh.Metadata["session_id"])

	_, err = engine.ValidateToken(ctx, pair.Access.Value, goIdentity.ValidateRequest{})
	require.NoError(t, err)

	// Replaying the burned refresh value reports revocation, not a miss.
	_, err = engine.RefreshToken(ctx, res.RefreshToken, "")
	require.ErrorIs(t, err, goIdentity.ErrTokenRevoked)

	// Logout ends the session and takes the rotated descendants with it.
	require.NoError(t, engine.Logout(ctx, res.SessionID))

	_, err = engine.ValidateSession(ctx, res.SessionID)
	require.ErrorIs(t, err, goIdentity.ErrSessionRevoked)

	_, err = engine.ValidateToken(ctx, pair.Access.Value, goIdentity.ValidateRequest{})
	require.ErrorIs(t, err, goIdentity.ErrTokenRevoked)

	_, err = engine.RefreshToken(ctx, pair.Refresh.Value, "")
	require.ErrorIs(t, err, goIdentity.ErrTokenRevoked)

	// Logging out an already-ended session is not an error.
	require.NoError(t, engine.Logout(ctx, res.SessionID))
}

// TestEndToEndMFAChallenge verifies that enabling a second factor turns the
// password-only login into a pending challenge instead of a session.
func TestEndToEndMFAChallenge(t *testing.T) {
	engine, _, cleanup := newIntegrationEngine(t)
	defer cleanup()
	ctx := context.Background()

	userID := createIntegrationUser(t, engine, "mfa-user", goIdentity.RoleViewer)

	secret, otpauth, err := engine.EnableMFA(ctx, userID)
	require.NoError(t, err)
	require.NotEmpty(t, secret)
	require.Contains(t, otpauth, "otpauth://totp/")

	res, err := engine.Authenticate(ctx, goIdentity.MethodPassword, goIdentity.Credentials{
		Username: "mfa-user",
		Password: integrationPassword,
	})
	require.NoError(t, err)
	require.Equal(t, goIdentity.AuthPending, res.Status)
	require.True(t, res.MFARequired)
	require.Empty(t, res.Token)
	require.Empty(t, res.SessionID)

	// Disabling the factor restores the plain password flow.
	require.NoError(t, engine.DisableMFA(ctx, userID))

	res = loginIntegrationUser(t, engine, "mfa-user")
	require.False(t, res.MFARequired)
	require.NotEmpty(t, res.SessionID)
}

// TestEndToEndPasswordChangeRevokesCredentials verifies that a password
// change ends the user's outstanding sessions and tokens.
func TestEndToEndPasswordChangeRevokesCredentials(t *testing.T) {
	engine, _, cleanup := newIntegrationEngine(t)
	defer cleanup()
	ctx := context.Background()

	userID := createIntegrationUser(t, engine, "rotator", goIdentity.RoleDeveloper)
	res := loginIntegrationUser(t, engine, "rotator")

	const newPassword = "N3w-Sup3r@Secret"
	require.NoError(t, engine.ChangePassword(ctx, userID, integrationPassword, newPassword))

	_, err := engine.ValidateToken(ctx, res.Token, goIdentity.ValidateRequest{})
	require.ErrorIs(t, err, goIdentity.ErrTokenRevoked)

	_, err = engine.Authenticate(ctx, goIdentity.MethodPassword, goIdentity.Credentials{
		Username: "rotator",
		Password: integrationPassword,
	})
	require.ErrorIs(t, err, goIdentity.ErrInvalidCredentials)

	relogin, err := engine.Authenticate(ctx, goIdentity.MethodPassword, goIdentity.Credentials{
		Username: "rotator",
		Password: newPassword,
	})
	require.NoError(t, err)
	require.Equal(t, goIdentity.AuthSuccess, relogin.Status)
}
