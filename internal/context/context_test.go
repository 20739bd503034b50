package context

import (
	"context"
	"testing"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUserFromContext(t *testing.T) {
	tokenAuth := jwtauth.New("HS256", []byte("secret"), nil)
	id := uuid.New()

	t.Run("from jwt claims", func(t *testing.T) {
		token, _, err := tokenAuth.Encode(map[string]interface{}{
			"user_id":  id.String(),
			"username": "alice",
		})
		require.NoError(t, err)

		ctx := jwtauth.NewContext(context.Background(), token, nil)
		user := GetUserFromContext(ctx)
		require.NotNil(t, user)
		assert.Equal(t, id, user.ID)
		assert.Equal(t, "alice", user.Username)
	})

	t.Run("malformed user id", func(t *testing.T) {
		token, _, err := tokenAuth.Encode(map[string]interface{}{
			"user_id":  "not-a-uuid",
			"username": "alice",
		})
		require.NoError(t, err)

		ctx := jwtauth.NewContext(context.Background(), token, nil)
		assert.Nil(t, GetUserFromContext(ctx))
	})

	t.Run("no token", func(t *testing.T) {
		assert.Nil(t, GetUserFromContext(context.Background()))
	})

	t.Run("stored user wins", func(t *testing.T) {
		stored := &UserInfo{ID: id, Username: "bob"}
		ctx := WithUser(context.Background(), stored)
		assert.Same(t, stored, GetUserFromContext(ctx))
	})
}
