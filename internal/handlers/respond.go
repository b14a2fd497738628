package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/sallegelias/metaverso-erp/httpx"
	"github.com/sallegelias/metaverso-erp/internal/logger"
	"github.com/sallegelias/metaverso-erp/internal/notify"
	"github.com/sallegelias/metaverso-erp/internal/services"
	"github.com/sallegelias/metaverso-erp/validation"
	"github.com/sallegelias/metaverso-erp/view"
)

// pathID parses the {id} path value. Zero is a valid id that matches no
// row, so it behaves like any other missing id.
func pathID(r *http.Request) (uint, bool) {
	n, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(n), true
}

// formID parses the optional "id" form field; empty means a new record.
func formID(r *http.Request) (uint, bool) {
	raw := r.FormValue("id")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(n), true
}

// redirect sends HTML clients back to path with a flash code.
func redirect(w http.ResponseWriter, r *http.Request, path, mensaje string) {
	if mensaje != "" {
		path += "?mensaje=" + url.QueryEscape(mensaje)
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// done answers a successful mutation: payload for JSON clients, a redirect
// otherwise.
func done(w http.ResponseWriter, r *http.Request, status int, payload any, back, mensaje string) {
	if httpx.WantsJSON(r) {
		httpx.JSON(w, status, payload)
		return
	}
	redirect(w, r, back, mensaje)
}

// fail maps service and dispatcher errors onto HTTP.
func fail(w http.ResponseWriter, r *http.Request, err error, back string) {
	status, code, mensaje := http.StatusInternalServerError, "internal_error", "error"
	var details any

	var missing *notify.MissingRecipientError
	var sendErr *notify.SendError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status, code, mensaje = http.StatusNotFound, "not_found", "no_encontrado"
	case errors.Is(err, services.ErrForbidden):
		status, code, mensaje = http.StatusForbidden, "forbidden", "no_autorizado"
	case errors.Is(err, services.ErrInvalidTransition):
		status, code, mensaje = http.StatusBadRequest, services.ErrInvalidTransition.Error(), "datos_invalidos"
	case errors.Is(err, services.ErrInvalidInput):
		status, code, mensaje = http.StatusBadRequest, services.ErrInvalidInput.Error(), "datos_invalidos"
	case errors.As(err, &missing):
		status, code, mensaje = http.StatusBadRequest, "missing_recipient", "sin_email"
		details = map[string]string{"client": missing.ClientName}
	case errors.As(err, &sendErr):
		status, code, mensaje = http.StatusBadGateway, "send_failed", "error_envio"
		details = map[string]string{"reason": sendErr.Reason}
	default:
		logger.FromContext(r.Context()).Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}

	if httpx.WantsJSON(r) {
		httpx.JSONError(w, status, code, details)
		return
	}
	redirect(w, r, back, mensaje)
}

// invalid answers a request whose fields did not validate.
func invalid(w http.ResponseWriter, r *http.Request, v validation.Violations, back string) {
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	redirect(w, r, back, "datos_invalidos")
}

// page renders a template or a JSON payload depending on the client.
func page(w http.ResponseWriter, r *http.Request, name string, data map[string]any, payload any) {
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, payload)
		return
	}
	if err := view.Render(w, r, name, data); err != nil {
		logger.FromContext(r.Context()).Error("render failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
	}
}
