package password

import (
	"errors"
	"strings"
	"unicode"
)

// DefaultSpecialChars is an exported constant or variable used by the identity engine.
const DefaultSpecialChars = "!@#$%^&*()_+-=[]{}|;:,.<>?"

// Policy defines a public type used by goIdentity APIs.
//
// Policy instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Policy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
	SpecialChars   string
}

// DefaultPolicy describes the defaultpolicy operation and its observable behavior.
//
// DefaultPolicy may return an error when input validation, dependency calls, or security checks fail.
// DefaultPolicy does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:      8,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
		SpecialChars:   DefaultSpecialChars,
	}
}

// Check describes the check operation and its observable behavior.
//
// Check may return an error when input validation, dependency calls, or security checks fail.
// Check does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p Policy) Check(password string) error {
	if len(password) < p.MinLength {
		return errors.New("password shorter than minimum length")
	}

	specials := p.SpecialChars
	if specials == "" {
		specials = DefaultSpecialChars
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(specials, r):
			hasSpecial = true
		}
	}

	if p.RequireUpper && !hasUpper {
		return errors.New("password needs an uppercase letter")
	}
	if p.RequireLower && !hasLower {
		return errors.New("password needs a lowercase letter")
	}
	if p.RequireDigit && !hasDigit {
		return errors.New("password needs a digit")
	}
	if p.RequireSpecial && !hasSpecial {
		return errors.New("password needs a special character")
	}
	return nil
}
