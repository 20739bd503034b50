package dashboard

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"codedrop/internal/api"
	"codedrop/internal/context"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) HandleGetDashboardStats(w http.ResponseWriter, r *http.Request) {
	user := context.GetUserFromContext(r.Context())
	if user == nil {
		api.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	stats, err := h.service.GetDashboardStats(r.Context(), user.ID)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", user.ID.String()).
			Msg("Error fetching dashboard stats")
		api.WriteError(w, http.StatusInternalServerError, "Error fetching dashboard statistics")
		return
	}

	api.WriteJSON(w, http.StatusOK, stats)
}
