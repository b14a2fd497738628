package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/sallegelias/metaverso-erp/internal/models"
	"github.com/sallegelias/metaverso-erp/internal/money"
	"github.com/sallegelias/metaverso-erp/internal/services"
	"github.com/sallegelias/metaverso-erp/validation"
)

// RecordHandler serves the client, supplier, product and survey modules.
// Each module has a list page with an inline form; saving with an id
// updates, saving without one creates.
type RecordHandler struct {
	records *services.RecordService
}

func NewRecordHandler(records *services.RecordService) *RecordHandler {
	return &RecordHandler{records: records}
}

var clientKinds = []string{models.KindPrivate, models.KindGovernment, models.KindPH}

// Clients

func (h *RecordHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.records.ListClients(r.Context())
	if err != nil {
		fail(w, r, err, "/dashboard")
		return
	}
	page(w, r, "clients.html", map[string]any{"Clients": clients, "Kinds": clientKinds}, clients)
}

func (h *RecordHandler) SaveClient(w http.ResponseWriter, r *http.Request) {
	id, ok := formID(r)
	if !ok {
		invalid(w, r, validation.Violations{"id": "invalid_number"}, "/clients")
		return
	}
	c := &models.Client{
		ID:      id,
		Name:    r.FormValue("nombre"),
		TaxID:   r.FormValue("nit"),
		Contact: r.FormValue("encargado"),
		Address: r.FormValue("direccion"),
		Phone:   r.FormValue("telefono"),
		Email:   r.FormValue("email"),
		Kind:    r.FormValue("tipo"),
	}
	v := make(validation.Violations)
	validation.Required("nombre", c.Name, v)
	validation.Email("email", c.Email, v)
	validation.OneOf("tipo", c.Kind, clientKinds, v)
	if !v.Empty() {
		invalid(w, r, v, "/clients")
		return
	}
	if err := h.records.SaveClient(r.Context(), c); err != nil {
		fail(w, r, err, "/clients")
		return
	}
	done(w, r, http.StatusOK, c, "/clients", "guardado")
}

func (h *RecordHandler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, "/clients", h.records.DeleteClient)
}

// Suppliers

func (h *RecordHandler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.records.ListSuppliers(r.Context())
	if err != nil {
		fail(w, r, err, "/dashboard")
		return
	}
	page(w, r, "suppliers.html", map[string]any{"Suppliers": suppliers}, suppliers)
}

func (h *RecordHandler) SaveSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := formID(r)
	if !ok {
		invalid(w, r, validation.Violations{"id": "invalid_number"}, "/suppliers")
		return
	}
	s := &models.Supplier{
		ID:      id,
		Name:    r.FormValue("nombre"),
		TaxID:   r.FormValue("nit"),
		Contact: r.FormValue("encargado"),
		Address: r.FormValue("direccion"),
		Phone:   r.FormValue("telefono"),
		Email:   r.FormValue("email"),
		Kind:    r.FormValue("tipo"),
	}
	v := make(validation.Violations)
	validation.Required("nombre", s.Name, v)
	validation.Email("email", s.Email, v)
	if !v.Empty() {
		invalid(w, r, v, "/suppliers")
		return
	}
	if err := h.records.SaveSupplier(r.Context(), s); err != nil {
		fail(w, r, err, "/suppliers")
		return
	}
	done(w, r, http.StatusOK, s, "/suppliers", "guardado")
}

func (h *RecordHandler) DeleteSupplier(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, "/suppliers", h.records.DeleteSupplier)
}

// Products

func (h *RecordHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.records.ListProducts(r.Context())
	if err != nil {
		fail(w, r, err, "/dashboard")
		return
	}
	suppliers, err := h.records.SupplierNames(r.Context())
	if err != nil {
		fail(w, r, err, "/dashboard")
		return
	}
	page(w, r, "products.html", map[string]any{"Products": products, "Suppliers": suppliers}, products)
}

func (h *RecordHandler) SaveProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := formID(r)
	if !ok {
		invalid(w, r, validation.Violations{"id": "invalid_number"}, "/products")
		return
	}
	v := make(validation.Violations)
	p := &models.Product{
		ID:       id,
		Code:     r.FormValue("codigo"),
		Name:     r.FormValue("nombre"),
		Kind:     r.FormValue("tipo"),
		Cost:     formMoney(r, "costo", v),
		Price:    formMoney(r, "precio", v),
		Supplier: r.FormValue("proveedor"),
		Image:    r.FormValue("imagen"),
	}
	validation.Required("nombre", p.Name, v)
	validation.NonNegative("costo", p.Cost, v)
	validation.NonNegative("precio", p.Price, v)
	if !v.Empty() {
		invalid(w, r, v, "/products")
		return
	}
	if err := h.records.SaveProduct(r.Context(), p); err != nil {
		fail(w, r, err, "/products")
		return
	}
	done(w, r, http.StatusOK, p, "/products", "guardado")
}

func (h *RecordHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, "/products", h.records.DeleteProduct)
}

// Surveys

func (h *RecordHandler) ListSurveys(w http.ResponseWriter, r *http.Request) {
	surveys, err := h.records.ListSurveys(r.Context())
	if err != nil {
		fail(w, r, err, "/dashboard")
		return
	}
	clients, err := h.records.ClientsByName(r.Context())
	if err != nil {
		fail(w, r, err, "/dashboard")
		return
	}
	page(w, r, "surveys.html", map[string]any{"Surveys": surveys, "Clients": clients}, surveys)
}

func (h *RecordHandler) SaveSurvey(w http.ResponseWriter, r *http.Request) {
	id, ok := formID(r)
	if !ok {
		invalid(w, r, validation.Violations{"id": "invalid_number"}, "/surveys")
		return
	}
	v := make(validation.Violations)
	s := &models.Survey{
		ID:            id,
		Client:        r.FormValue("cliente"),
		ProjectName:   r.FormValue("nombre_proyecto"),
		Towers:        formInt(r, "torres", v),
		Floors:        formInt(r, "pisos", v),
		UnitsPerFloor: formInt(r, "aptos_piso", v),
		LengthM:       formFloat(r, "largo_m", v),
		WidthM:        formFloat(r, "ancho_m", v),
		Amenities:     r.FormValue("amenidades_json"),
		CablingCalc:   r.FormValue("calculo_utp"),
		Notes:         r.FormValue("notas"),
	}
	validation.Required("cliente", s.Client, v)
	validation.Required("nombre_proyecto", s.ProjectName, v)
	validation.NonNegativeInt("torres", s.Towers, v)
	validation.NonNegativeInt("pisos", s.Floors, v)
	validation.NonNegativeInt("aptos_piso", s.UnitsPerFloor, v)
	validation.NonNegative("largo_m", s.LengthM, v)
	validation.NonNegative("ancho_m", s.WidthM, v)
	if !v.Empty() {
		invalid(w, r, v, "/surveys")
		return
	}
	if err := h.records.SaveSurvey(r.Context(), s); err != nil {
		fail(w, r, err, "/surveys")
		return
	}
	done(w, r, http.StatusOK, s, "/surveys", "guardado")
}

func (h *RecordHandler) DeleteSurvey(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, "/surveys", h.records.DeleteSurvey)
}

func (h *RecordHandler) delete(w http.ResponseWriter, r *http.Request, back string, del func(context.Context, uint) error) {
	id, ok := pathID(r)
	if !ok {
		fail(w, r, services.ErrNotFound, back)
		return
	}
	if err := del(r.Context(), id); err != nil {
		fail(w, r, err, back)
		return
	}
	done(w, r, http.StatusOK, map[string]any{"deleted": id}, back, "eliminado")
}

// formInt reads an optional integer field; blank is zero.
func formInt(r *http.Request, field string, v validation.Violations) int {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		v[field] = "invalid_number"
	}
	return n
}

// formFloat reads an optional decimal field; blank is zero. A comma is
// accepted as the decimal separator.
func formFloat(r *http.Request, field string, v validation.Violations) float64 {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		v[field] = "invalid_number"
	}
	return f
}

// formMoney reads an amount typed the way users write prices ("$ 1.250.000");
// blank is zero.
func formMoney(r *http.Request, field string, v validation.Violations) float64 {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return 0
	}
	f, ok := money.ParseString(raw)
	if !ok {
		v[field] = "invalid_number"
	}
	return f
}
