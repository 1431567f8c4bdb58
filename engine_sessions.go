package goIdentity

import (
	"context"
	"errors"
	"log"
)

// ValidateSession describes the validatesession operation and its observable behavior.
//
// ValidateSession may return an error when input validation, dependency calls, or security checks fail.
// ValidateSession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Sessions expire lazily: the first access past ExpiresAt flips the active
// flag and publishes the expiry event, ahead of the reaper. Expiry is
// checked before the active flag so an expired session keeps answering
// [ErrSessionExpired] on repeat validations instead of degrading to
// [ErrSessionRevoked] after the flip. A success updates LastActivity.
//
//	Docs: docs/engine.md
func (e *Engine) ValidateSession(ctx context.Context, sessionID string) (*Session, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}

	s, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := e.now()

	if !s.ExpiresAt.After(now) {
		if s.Active {
			if err := e.sessions.SetInactive(ctx, sessionID); err == nil {
				e.metricInc(MetricSessionExpired)
				e.publish(ctx, Event{
					Type:      EventSessionExpired,
					UserID:    s.UserID,
					SessionID: s.ID,
				})
			}
		}
		return nil, ErrSessionExpired
	}
	if !s.Active {
		return nil, ErrSessionRevoked
	}

	if err := e.sessions.Touch(ctx, sessionID, now); err != nil {
		log.Print("goidentity: touch session: ", err)
	}
	s.LastActivity = now

	return s, nil
}

// RevokeSession describes the revokesession operation and its observable behavior.
//
// RevokeSession may return an error when input validation, dependency calls, or security checks fail.
// RevokeSession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The bool reports whether this call ended a live session: false for ids
// that are unknown or already inactive. Tokens minted for the session stay
// valid; [Engine.Logout] is the operation that takes them down too.
//
//	Docs: docs/engine.md
func (e *Engine) RevokeSession(ctx context.Context, sessionID string) (bool, error) {
	if err := e.guard(); err != nil {
		return false, err
	}

	s, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	if !s.Active {
		return false, nil
	}

	if err := e.sessions.SetInactive(ctx, sessionID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}

	e.metricInc(MetricSessionRevoked)
	e.publish(ctx, Event{
		Type:      EventSessionRevoked,
		UserID:    s.UserID,
		SessionID: s.ID,
		Success:   true,
	})

	return true, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Logout ends the session and revokes the token pair minted for it at
// login. The pair is found by the session tag in token metadata, which
// rotation inherits, so refreshed descendants die with the session too.
// Logging out an already-ended session is not an error; any tokens still
// carrying the tag are swept regardless.
//
//	Docs: docs/engine.md
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if err := e.guard(); err != nil {
		return err
	}

	s, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	now := e.now()

	if s.Active {
		if err := e.sessions.SetInactive(ctx, sessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return err
		}
	}

	active := StatusActive
	list, err := e.tokens.ForUser(ctx, s.UserID, nil, &active)
	if err != nil {
		log.Print("goidentity: logout token sweep: ", err)
	} else {
		for _, t := range list {
			if t.Metadata[metaSessionID] != sessionID {
				continue
			}
			if _, err := e.revokeActive(ctx, t.ID, now, s.UserID, "logout"); err != nil {
				log.Print("goidentity: logout token sweep: ", err)
			}
		}
	}

	e.metricInc(MetricLogout)
	e.publish(ctx, Event{
		Type:      EventLogout,
		UserID:    s.UserID,
		SessionID: sessionID,
		Success:   true,
	})

	return nil
}
