package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sallegelias/metaverso-erp/auth"
	"github.com/sallegelias/metaverso-erp/internal/logger"
	"github.com/sallegelias/metaverso-erp/internal/services"
	"github.com/sallegelias/metaverso-erp/view"
)

type AuthHandler struct {
	settings *services.SettingsService
}

func NewAuthHandler(settings *services.SettingsService) *AuthHandler {
	return &AuthHandler{settings: settings}
}

// Home sends signed-in users to the dashboard and everyone else to the login form.
func (h *AuthHandler) Home(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserIDFromContext(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	page(w, r, "login.html", nil, nil)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	user, err := h.settings.Authenticate(r.Context(), username, password)
	if err != nil {
		log := logger.FromContext(r.Context())
		if !errors.Is(err, services.ErrInvalidCredentials) {
			log.Error("login lookup failed", zap.Error(err))
		} else {
			log.Info("login rejected", zap.String("username", username))
		}
		view.Render(w, r, "login.html", map[string]any{"Error": "login.error", "Username": username})
		return
	}

	auth.CreateSession(w, user.ID)
	logger.FromContext(r.Context()).Info("login", zap.String("username", user.Username), zap.String("role", user.Role))
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
