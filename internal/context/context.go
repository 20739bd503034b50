package context

import (
	"context"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	userContextKey contextKey = "user"
)

// UserInfo identifies the signed-in user of a request
type UserInfo struct {
	ID       uuid.UUID
	Username string
}

// GetUserFromContext returns the user stored by WithUser or, failing that,
// the user described by the verified JWT claims. Nil means anonymous.
func GetUserFromContext(ctx context.Context) *UserInfo {
	if user, ok := ctx.Value(userContextKey).(*UserInfo); ok {
		return user
	}

	token, claims, err := jwtauth.FromContext(ctx)
	if err != nil || token == nil {
		return nil
	}

	return getUserFromClaims(claims)
}

func getUserFromClaims(claims map[string]interface{}) *UserInfo {
	userID, _ := claims["user_id"].(string)
	username, _ := claims["username"].(string)
	if userID == "" || username == "" {
		return nil
	}

	parsedID, err := uuid.Parse(userID)
	if err != nil {
		log.Debug().
			Str("user_id", userID).
			Msg("jwt carries malformed user id")
		return nil
	}

	return &UserInfo{
		ID:       parsedID,
		Username: username,
	}
}

// WithUser adds user info to the context
func WithUser(ctx context.Context, user *UserInfo) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
