package auth

import (
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/rs/zerolog/log"

	"codedrop/internal/api"
	userctx "codedrop/internal/context"
)

// Verifier reads the token from the Authorization header or the jwt cookie
// and stores the verification result in the request context
func Verifier(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return jwtauth.Verify(ja, jwtauth.TokenFromHeader, jwtauth.TokenFromCookie)
}

// RequireUser rejects requests without a valid token using the JSON error
// envelope and stores the user in the context for handlers
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			if err != nil {
				log.Debug().
					Err(err).
					Str("path", r.URL.Path).
					Msg("rejected token")
			}
			api.WriteError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		user := userctx.GetUserFromContext(r.Context())
		if user == nil {
			api.WriteError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(userctx.WithUser(r.Context(), user)))
	})
}
