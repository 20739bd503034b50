package user

import "codedrop/internal/models"

// CreateUserRequest represents the data needed to create a new user
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"required,password"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"required,min=1"`
}

// AuthResponse is returned by register and login. The token is also set as
// the jwt cookie.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}
