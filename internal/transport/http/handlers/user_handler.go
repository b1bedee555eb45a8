package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/vvukelic/ripple/internal/service"
	"github.com/vvukelic/ripple/internal/transport/http/middleware"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Sidebar returns every other user with unread counts and last-seen, for
// the contact list.
func (h *UserHandler) Sidebar(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	contacts, err := h.userService.Sidebar(r.Context(), userID)
	if err != nil {
		log.Printf("ERROR sidebar: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, contacts)
}

func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if input.Image == "" {
		writeError(w, http.StatusBadRequest, "MISSING_IMAGE", "image is required")
		return
	}

	user, err := h.userService.UpdateAvatar(r.Context(), userID, input.Image)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		} else {
			log.Printf("ERROR update avatar: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, user)
}
