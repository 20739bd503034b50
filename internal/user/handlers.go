package user

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"codedrop/internal/api"
	userctx "codedrop/internal/context"
	"codedrop/internal/models"
	"codedrop/internal/validation"
)

// TokenIssuer issues a signed session token for a user
type TokenIssuer interface {
	GenerateToken(user *models.User) (string, error)
}

type Handler struct {
	service     Service
	tokenIssuer TokenIssuer
}

func NewHandler(service Service, tokenIssuer TokenIssuer) *Handler {
	return &Handler{
		service:     service,
		tokenIssuer: tokenIssuer,
	}
}

const sessionCookie = "jwt"

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validation.Validate(&req); err != nil {
		errs := validation.FormatError(err)
		api.WriteError(w, http.StatusBadRequest, errs[0].Error)
		return
	}

	user, err := h.service.Register(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailExists):
			api.WriteError(w, http.StatusConflict, "Email already exists")
		case errors.Is(err, ErrUsernameExists):
			api.WriteError(w, http.StatusConflict, "Username already exists")
		default:
			log.Error().
				Err(err).
				Str("username", req.Username).
				Msg("Failed to register user")
			api.WriteError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.startSession(w, r, user, http.StatusCreated)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validation.Validate(&req); err != nil {
		errs := validation.FormatError(err)
		api.WriteError(w, http.StatusBadRequest, errs[0].Error)
		return
	}

	user, err := h.service.ValidateCredentials(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			api.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		log.Error().
			Err(err).
			Str("username", req.Username).
			Msg("Error validating user credentials")
		api.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.startSession(w, r, user, http.StatusOK)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, user *models.User, status int) {
	token, err := h.tokenIssuer.GenerateToken(user)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", user.ID.String()).
			Msg("Failed to generate auth token")
		api.WriteError(w, http.StatusInternalServerError, "Error generating token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   3600 * 24,
	})

	api.WriteJSON(w, status, AuthResponse{Token: token, User: user})
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	api.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleMe returns the signed-in user
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	info := userctx.GetUserFromContext(r.Context())
	if info == nil {
		api.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.service.GetByID(r.Context(), info.ID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			api.WriteError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		log.Error().
			Err(err).
			Str("user_id", info.ID.String()).
			Msg("Failed to load user")
		api.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	api.WriteJSON(w, http.StatusOK, user)
}
