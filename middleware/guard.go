package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
)

type tokenContextKey struct{}

// TokenFromContext returns the validated token injected by [Guard], or
// false when the request did not pass through a guard.
func TokenFromContext(ctx context.Context) (*goIdentity.Token, bool) {
	tok, ok := ctx.Value(tokenContextKey{}).(*goIdentity.Token)
	return tok, ok
}

// Guard returns middleware that authenticates every request through
// [goIdentity.Engine.ValidateToken]. The bearer value comes from the
// Authorization header, the origin from the client address, and the
// resource from the request path unless req pins one. The validated
// token is injected into the request context for downstream handlers.
func Guard(engine *goIdentity.Engine, req goIdentity.ValidateRequest) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			value, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := goIdentity.WithClientIP(r.Context(), remoteIP(r))
			ctx = goIdentity.WithUserAgent(ctx, r.UserAgent())

			perCall := req
			if perCall.Resource == "" {
				perCall.Resource = r.URL.Path
			}

			tok, err := engine.ValidateToken(ctx, value, perCall)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, tokenContextKey{}, tok)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
