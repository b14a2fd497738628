package handlers

import (
	"net/http"
	"strings"

	"github.com/sallegelias/metaverso-erp/internal/models"
	"github.com/sallegelias/metaverso-erp/internal/services"
	"github.com/sallegelias/metaverso-erp/validation"
)

// SettingsHandler edits the two company profiles and user passwords.
type SettingsHandler struct {
	settings *services.SettingsService
}

func NewSettingsHandler(settings *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

func (h *SettingsHandler) Show(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.settings.Profiles(r.Context())
	if err != nil {
		fail(w, r, err, "/dashboard")
		return
	}
	users, err := h.settings.Usernames(r.Context())
	if err != nil {
		fail(w, r, err, "/dashboard")
		return
	}
	page(w, r, "settings.html", map[string]any{"Profiles": profiles, "Users": users}, profiles)
}

// Save updates both profiles from fields suffixed _a and _b.
func (h *SettingsHandler) Save(w http.ResponseWriter, r *http.Request) {
	v := make(validation.Violations)
	var updates []services.ProfileUpdate
	for _, id := range []string{models.ProfileA, models.ProfileB} {
		sfx := "_" + strings.ToLower(id)
		u := services.ProfileUpdate{
			ID:      id,
			Name:    strings.TrimSpace(r.FormValue("nombre" + sfx)),
			TaxID:   strings.TrimSpace(r.FormValue("nit" + sfx)),
			Address: strings.TrimSpace(r.FormValue("dir" + sfx)),
			Phone:   strings.TrimSpace(r.FormValue("tel" + sfx)),
			Email:   strings.TrimSpace(r.FormValue("email" + sfx)),
			Slogan:  strings.TrimSpace(r.FormValue("lema" + sfx)),
		}
		validation.Required("nombre"+sfx, u.Name, v)
		validation.Email("email"+sfx, u.Email, v)
		updates = append(updates, u)
	}
	if !v.Empty() {
		invalid(w, r, v, "/settings")
		return
	}
	if err := h.settings.UpdateProfiles(r.Context(), updates...); err != nil {
		fail(w, r, err, "/settings")
		return
	}
	done(w, r, http.StatusOK, map[string]any{"updated": len(updates)}, "/settings", "guardado")
}

// ChangePassword sets a new password for usuario_objetivo.
func (h *SettingsHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.FormValue("usuario_objetivo"))
	pass := r.FormValue("nueva_clave")

	v := make(validation.Violations)
	validation.Required("usuario_objetivo", user, v)
	validation.Required("nueva_clave", pass, v)
	if !v.Empty() {
		invalid(w, r, v, "/settings")
		return
	}
	if err := h.settings.ChangePassword(r.Context(), user, pass); err != nil {
		fail(w, r, err, "/settings")
		return
	}
	done(w, r, http.StatusOK, map[string]any{"updated": user}, "/settings", "clave")
}

// ChangeRole sets the rol of usuario_objetivo.
func (h *SettingsHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.FormValue("usuario_objetivo"))
	role := strings.TrimSpace(r.FormValue("rol"))

	v := make(validation.Violations)
	validation.Required("usuario_objetivo", user, v)
	validation.Required("rol", role, v)
	if !v.Empty() {
		invalid(w, r, v, "/settings")
		return
	}
	if err := h.settings.ChangeRole(r.Context(), user, role); err != nil {
		fail(w, r, err, "/settings")
		return
	}
	done(w, r, http.StatusOK, map[string]any{"updated": user, "role": strings.ToLower(role)}, "/settings", "rol")
}
