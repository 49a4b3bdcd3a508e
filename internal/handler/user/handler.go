// Package user serves authentication and profile routes.
package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meetingflow/backend/internal/storage"
	"github.com/meetingflow/backend/pkg/utils"
)

// Handler serves user routes.
type Handler struct {
	store storage.Storage
}

// New creates the user handler.
func New(store storage.Storage) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts user routes on the API router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Get("/user/{id}", h.handleGetUser)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if payload.Username == "" || payload.Password == "" {
		utils.RespondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	u, err := h.store.GetUserByUsername(r.Context(), payload.Username)
	if err != nil || u.Password != payload.Password {
		utils.RespondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"name":     u.Name,
		"role":     u.Role,
	})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.store.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "User not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "Failed to retrieve user")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"name":     u.Name,
		"role":     u.Role,
	})
}
