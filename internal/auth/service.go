package auth

import (
	"time"

	"github.com/go-chi/jwtauth/v5"

	"codedrop/internal/models"
)

const TokenExpiry = time.Hour * 24

type Service interface {
	GetAuth() *jwtauth.JWTAuth
	GenerateToken(user *models.User) (string, error)
}

type authService struct {
	tokenAuth *jwtauth.JWTAuth
	now       func() time.Time
}

// NewService creates an HS256 token service
func NewService(secretKey string) Service {
	return &authService{
		tokenAuth: jwtauth.New("HS256", []byte(secretKey), nil),
		now:       time.Now,
	}
}

// GetAuth returns the JWTAuth instance for middleware
func (s *authService) GetAuth() *jwtauth.JWTAuth {
	return s.tokenAuth
}

// GenerateToken creates a new JWT token for a user
func (s *authService) GenerateToken(user *models.User) (string, error) {
	claims := map[string]interface{}{
		"user_id":  user.ID.String(),
		"username": user.Username,
	}
	jwtauth.SetIssuedAt(claims, s.now())
	jwtauth.SetExpiry(claims, s.now().Add(TokenExpiry))

	_, tokenString, err := s.tokenAuth.Encode(claims)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}
