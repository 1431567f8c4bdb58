package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config defines a public type used by goIdentity APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// Secret is the HS256 signing secret. It must be supplied by the caller;
	// the manager never generates one.
	Secret       []byte
	Issuer       string
	Audience     string
	Leeway       time.Duration
	RequireIAT   bool
	MaxFutureIAT time.Duration

	// TimeFunc supplies the verification clock. Nil means time.Now.
	TimeFunc func() time.Time
}

// Manager defines a public type used by goIdentity APIs.
//
// Manager instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Manager struct {
	config Config
}

// Claims defines a public type used by goIdentity APIs.
//
// Claims instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// The registered ID claim carries the token record identifier, so a bearer
// string can always be traced back to its stored record.
type Claims struct {
	UID      string `json:"uid"`
	ClientID string `json:"cid,omitempty"`
	SID      string `json:"sid,omitempty"`
	Kind     string `json:"knd"`
	Scopes   string `json:"scp,omitempty"`
	jwt.RegisteredClaims
}

// SignRequest defines a public type used by goIdentity APIs.
//
// SignRequest instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SignRequest struct {
	TokenID   string
	UserID    string
	ClientID  string
	SessionID string
	Kind      string
	Scopes    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewManager describes the newmanager operation and its observable behavior.
//
// NewManager may return an error when input validation, dependency calls, or security checks fail.
// NewManager does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("hs256 requires signing secret")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.TimeFunc == nil {
		cfg.TimeFunc = time.Now
	}

	return &Manager{config: cfg}, nil
}

// Create describes the create operation and its observable behavior.
//
// Create may return an error when input validation, dependency calls, or security checks fail.
// Create does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (j *Manager) Create(req SignRequest) (string, error) {
	if req.TokenID == "" {
		return "", errors.New("sign request missing token id")
	}
	if req.UserID == "" {
		return "", errors.New("sign request missing user id")
	}
	if req.Kind == "" {
		return "", errors.New("sign request missing token kind")
	}
	if req.IssuedAt.IsZero() || req.ExpiresAt.IsZero() {
		return "", errors.New("sign request missing timestamps")
	}
	if !req.ExpiresAt.After(req.IssuedAt) {
		return "", errors.New("sign request expiry not after issuance")
	}

	claims := Claims{
		UID:      req.UserID,
		ClientID: req.ClientID,
		SID:      req.SessionID,
		Kind:     req.Kind,
		Scopes:   req.Scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        req.TokenID,
			ExpiresAt: jwt.NewNumericDate(req.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(req.IssuedAt),
			Issuer:    j.config.Issuer,
		},
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.config.Secret)
}

// Parse describes the parse operation and its observable behavior.
//
// Parse may return an error when input validation, dependency calls, or security checks fail.
// Parse does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (j *Manager) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.config.TimeFunc),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.RequireIAT {
		options = append(options, jwt.WithIssuedAt())
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return j.config.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && j.config.MaxFutureIAT > 0 {
		maxAllowed := j.config.TimeFunc().Add(j.config.MaxFutureIAT)
		if claims.IssuedAt.Time.After(maxAllowed) {
			return nil, errors.New("token iat too far in the future")
		}
	}

	return claims, nil
}

// ParseExpect describes the parseexpect operation and its observable behavior.
//
// ParseExpect may return an error when input validation, dependency calls, or security checks fail.
// ParseExpect does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (j *Manager) ParseExpect(tokenStr, kind string) (*Claims, error) {
	claims, err := j.Parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("unexpected token kind: %s", claims.Kind)
	}
	return claims, nil
}

// IsExpired describes the isexpired operation and its observable behavior.
//
// IsExpired may return an error when input validation, dependency calls, or security checks fail.
// IsExpired does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
