package middleware

import (
	"net/http"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// Require returns middleware that enforces bearer authentication with no
// scope requirement beyond the token being valid.
//
//	Docs: docs/engine.md
func Require(engine *goIdentity.Engine) func(http.Handler) http.Handler {
	return Guard(engine, goIdentity.ValidateRequest{})
}

// RequireScopes returns middleware that additionally rejects tokens whose
// scope set does not cover every listed scope.
//
//	Docs: docs/engine.md, docs/tokens.md
func RequireScopes(engine *goIdentity.Engine, scopes ...goIdentity.Scope) func(http.Handler) http.Handler {
	return Guard(engine, goIdentity.ValidateRequest{Scopes: goIdentity.NewScopeSet(scopes...)})
}
