package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sallegelias/metaverso-erp/httpx"
	"github.com/sallegelias/metaverso-erp/internal/logger"
	"github.com/sallegelias/metaverso-erp/internal/models"
	"github.com/sallegelias/metaverso-erp/internal/services"
	"github.com/sallegelias/metaverso-erp/validation"
)

// Mailer delivers quotations by email.
type Mailer interface {
	SendQuotationEmail(ctx context.Context, id uint) error
	SendQuotationLink(ctx context.Context, destination, clientName string, id uint, total float64) bool
}

type QuotationHandler struct {
	quotations *services.QuotationService
	records    *services.RecordService
	settings   *services.SettingsService
	mailer     Mailer
}

func NewQuotationHandler(q *services.QuotationService, rec *services.RecordService, set *services.SettingsService, m Mailer) *QuotationHandler {
	return &QuotationHandler{quotations: q, records: rec, settings: set, mailer: m}
}

// quotationRequest is the JSON form of the quotation builder. Items may be
// sent as an array or, like the HTML form, as an encoded string.
type quotationRequest struct {
	Date        string           `json:"fecha"`
	ClientName  string           `json:"cliente_info"`
	TaxID       string           `json:"nit"`
	Items       []map[string]any `json:"items"`
	ItemsJSON   string           `json:"items_json"`
	Profile     string           `json:"empresa_tipo"`
	NotifyEmail string           `json:"email_destino"`
}

type quotationResponse struct {
	ID        uint                   `json:"id"`
	Reference string                 `json:"reference"`
	Total     float64                `json:"total"`
	Status    models.QuotationStatus `json:"status"`
}

func (h *QuotationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	history, err := h.quotations.List(ctx)
	if err != nil {
		fail(w, r, err, "/dashboard")
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, history)
		return
	}
	clients, err := h.records.ClientsByName(ctx)
	if err != nil {
		fail(w, r, err, "/dashboard")
		return
	}
	catalog, err := h.records.Catalog(ctx)
	if err != nil {
		fail(w, r, err, "/dashboard")
		return
	}
	profiles, err := h.settings.Profiles(ctx)
	if err != nil {
		fail(w, r, err, "/dashboard")
		return
	}
	page(w, r, "quotations.html", map[string]any{
		"Quotations": history,
		"Clients":    clients,
		"Catalog":    catalog,
		"Profiles":   profiles,
		"Statuses":   []models.QuotationStatus{models.StatusSent, models.StatusApproved, models.StatusRejected},
	}, nil)
}

func (h *QuotationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req quotationRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
	} else {
		req = quotationRequest{
			Date:        r.FormValue("fecha"),
			ClientName:  r.FormValue("cliente_info"),
			TaxID:       r.FormValue("nit"),
			ItemsJSON:   r.FormValue("items_json"),
			Profile:     r.FormValue("empresa_tipo"),
			NotifyEmail: r.FormValue("email_destino"),
		}
	}

	v := make(validation.Violations)
	if req.Items == nil && strings.TrimSpace(req.ItemsJSON) != "" {
		if err := json.Unmarshal([]byte(req.ItemsJSON), &req.Items); err != nil {
			v["items_json"] = "invalid_choice"
		}
	}
	req.Profile = strings.ToUpper(strings.TrimSpace(req.Profile))
	validation.Required("cliente_info", req.ClientName, v)
	validation.OneOf("empresa_tipo", req.Profile, []string{models.ProfileA, models.ProfileB}, v)
	validation.Email("email_destino", req.NotifyEmail, v)
	if !v.Empty() {
		invalid(w, r, v, "/quotations")
		return
	}

	q, err := h.quotations.Create(r.Context(), services.QuotationInput{
		Date:           req.Date,
		ClientName:     req.ClientName,
		ClientTaxID:    req.TaxID,
		CompanyProfile: req.Profile,
		Items:          req.Items,
		NotifyEmail:    req.NotifyEmail,
	})
	if err != nil {
		fail(w, r, err, "/quotations")
		return
	}
	done(w, r, http.StatusCreated, quotationResponse{
		ID:        q.ID,
		Reference: q.Reference(),
		Total:     q.Total,
		Status:    q.CurrentStatus(),
	}, "/quotations", "creada")
}

// Print renders the printable quotation. The page is public so the link
// email works without a session.
func (h *QuotationHandler) Print(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	rq, err := h.quotations.GetForDisplay(r.Context(), id)
	if err != nil {
		if httpx.WantsJSON(r) {
			fail(w, r, err, "/quotations")
			return
		}
		if errors.Is(err, services.ErrNotFound) {
			http.Error(w, "Cotización no encontrada", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("load quotation for print", zap.Uint("id", id), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	page(w, r, "print.html", map[string]any{"Q": rq}, rq)
}

func (h *QuotationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		fail(w, r, services.ErrNotFound, "/quotations")
		return
	}
	if err := h.quotations.Delete(r.Context(), id); err != nil {
		fail(w, r, err, "/quotations")
		return
	}
	done(w, r, http.StatusOK, map[string]any{"deleted": id}, "/quotations", "eliminado")
}

func (h *QuotationHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.quotations.ResetNumbering(r.Context()); err != nil {
		fail(w, r, err, "/quotations")
		return
	}
	done(w, r, http.StatusOK, map[string]any{"next_id": services.NumberingBase + 1}, "/quotations", "reseteado")
}

func (h *QuotationHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		fail(w, r, services.ErrNotFound, "/quotations")
		return
	}
	if err := h.mailer.SendQuotationEmail(r.Context(), id); err != nil {
		fail(w, r, err, "/quotations")
		return
	}
	done(w, r, http.StatusOK, map[string]any{"sent": true, "id": id}, "/quotations", "enviado")
}

// SendLink mails the print link to the "email" form field, or to the
// quotation's stored recipient when the field is blank.
func (h *QuotationHandler) SendLink(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		fail(w, r, services.ErrNotFound, "/quotations")
		return
	}
	q, err := h.quotations.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err, "/quotations")
		return
	}
	dest := strings.TrimSpace(r.FormValue("email"))
	if dest == "" {
		dest = q.NotifyEmail
	}
	v := make(validation.Violations)
	validation.Email("email", dest, v)
	if !v.Empty() {
		invalid(w, r, v, "/quotations")
		return
	}
	if dest == "" {
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusBadRequest, "missing_recipient", map[string]string{"client": q.ClientName})
			return
		}
		redirect(w, r, "/quotations", "sin_email")
		return
	}
	if !h.mailer.SendQuotationLink(r.Context(), dest, q.ClientName, q.ID, q.Total) {
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusBadGateway, "send_failed", nil)
			return
		}
		redirect(w, r, "/quotations", "error_envio")
		return
	}
	done(w, r, http.StatusOK, map[string]any{"sent": true, "id": id, "to": dest}, "/quotations", "link_enviado")
}

// SetStatus moves a quotation through Pending, Sent, Approved, Rejected.
func (h *QuotationHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		fail(w, r, services.ErrNotFound, "/quotations")
		return
	}
	raw := r.FormValue("estado")
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		raw = body.Status
	}
	next, ok := models.ParseStatus(raw)
	if !ok {
		invalid(w, r, validation.Violations{"estado": "invalid_choice"}, "/quotations")
		return
	}
	q, err := h.quotations.SetStatus(r.Context(), id, next)
	if err != nil {
		fail(w, r, err, "/quotations")
		return
	}
	done(w, r, http.StatusOK, quotationResponse{
		ID:        q.ID,
		Reference: q.Reference(),
		Total:     q.Total,
		Status:    q.CurrentStatus(),
	}, "/quotations", "estado")
}
