package auth

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nlzhang/study-buddy/backend/internal/model/identity"
	"github.com/nlzhang/study-buddy/backend/internal/service/app"
	"github.com/nlzhang/study-buddy/backend/pkg/utils"
)

// Handler exposes the identity lifecycle and the theme preference.
type Handler struct {
	controller *app.Controller
}

// New creates the auth handler.
func New(controller *app.Controller) *Handler {
	return &Handler{controller: controller}
}

// RegisterRoutes registers auth and preference routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/logout", h.handleLogout)
	r.Get("/auth/me", h.handleMe)
	r.Get("/preferences/theme", h.handleGetTheme)
	r.Put("/preferences/theme", h.handleSetTheme)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Method  string `json:"method"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Subject string `json:"subject"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		user identity.Identity
		err  error
	)
	switch payload.Method {
	case "guest", "":
		user, err = identity.Guest(payload.Name, payload.Email)
	case "federated":
		user, err = identity.Federated(payload.Subject, payload.Name, payload.Email)
	default:
		utils.RespondError(w, http.StatusBadRequest, "unknown login method")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.controller.Login(r.Context(), user)

	current, _ := h.controller.CurrentSession()
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"user":             user,
		"currentSessionId": current.ID,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, _ *http.Request) {
	h.controller.Logout()
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *Handler) handleMe(w http.ResponseWriter, _ *http.Request) {
	user, ok := h.controller.User()
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not logged in")
		return
	}
	utils.RespondJSON(w, http.StatusOK, user)
}

func (h *Handler) handleGetTheme(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"theme": h.controller.Theme()})
}

func (h *Handler) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Theme string `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.controller.SetTheme(payload.Theme); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"theme": payload.Theme})
}
