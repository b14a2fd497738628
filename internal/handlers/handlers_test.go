package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sallegelias/metaverso-erp/auth"
	"github.com/sallegelias/metaverso-erp/internal/db"
	"github.com/sallegelias/metaverso-erp/internal/models"
	"github.com/sallegelias/metaverso-erp/internal/notify"
	"github.com/sallegelias/metaverso-erp/internal/services"
	"github.com/sallegelias/metaverso-erp/view"
)

type fakeMailer struct {
	err       error
	linkOK    bool
	sent      []uint
	linkDests []string
}

func (f *fakeMailer) SendQuotationEmail(_ context.Context, id uint) error {
	f.sent = append(f.sent, id)
	return f.err
}

func (f *fakeMailer) SendQuotationLink(_ context.Context, dest, _ string, _ uint, _ float64) bool {
	f.linkDests = append(f.linkDests, dest)
	return f.linkOK
}

type fixture struct {
	conn       *gorm.DB
	quotations *services.QuotationService
	records    *services.RecordService
	settings   *services.SettingsService
	mailer     *fakeMailer
	qh         *QuotationHandler
	rh         *RecordHandler
}

func setup(t *testing.T) *fixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Migrate(conn, nil); err != nil {
		t.Fatal(err)
	}
	if err := db.Seed(conn); err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		conn:       conn,
		quotations: services.NewQuotationService(conn, nil, nil),
		records:    services.NewRecordService(conn, nil),
		settings:   services.NewSettingsService(conn, nil),
		mailer:     &fakeMailer{linkOK: true},
	}
	f.qh = NewQuotationHandler(f.quotations, f.records, f.settings, f.mailer)
	f.rh = NewRecordHandler(f.records)
	return f
}

func as(r *http.Request, role string) *http.Request {
	ctx := auth.WithUserID(r.Context(), 1)
	ctx = auth.WithRole(ctx, role)
	return r.WithContext(ctx)
}

func formRequest(method, target string, form url.Values) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func jsonRequest(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Accept", "application/json")
	return r
}

func withID(r *http.Request, id uint) *http.Request {
	r.SetPathValue("id", fmt.Sprint(id))
	return r
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	return out
}

func (f *fixture) createQuotation(t *testing.T, profile, email string) *models.Quotation {
	t.Helper()
	q, err := f.quotations.Create(context.Background(), services.QuotationInput{
		Date:           "2026-03-01",
		ClientName:     "CONJUNTO LOS ROBLES",
		CompanyProfile: profile,
		Items:          []map[string]any{{"producto": "Cámara", "precio": 100000, "cantidad": 2, "subtotal": 200000}},
		NotifyEmail:    email,
	})
	if err != nil {
		t.Fatal(err)
	}
	return q
}

func TestCreateQuotationFromForm(t *testing.T) {
	f := setup(t)
	form := url.Values{
		"fecha":         {"2026-03-01"},
		"cliente_info":  {"CONJUNTO LOS ROBLES"},
		"nit":           {"900.123"},
		"items_json":    {`[{"producto":"Cámara","precio":100000,"cantidad":2,"subtotal":"$ 200.000"}]`},
		"empresa_tipo":  {"a"},
		"email_destino": {"admin@robles.co"},
	}
	rec := httptest.NewRecorder()
	f.qh.Create(rec, as(formRequest(http.MethodPost, "/quotations", form), auth.RoleAssistant))

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/quotations?mensaje=creada" {
		t.Fatalf("got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	var q models.Quotation
	if err := f.conn.First(&q).Error; err != nil {
		t.Fatal(err)
	}
	if q.Total != 238000 || q.CompanyProfile != "A" || q.NotifyEmail != "admin@robles.co" || q.ClientTaxID != "900.123" {
		t.Fatalf("stored %+v", q)
	}
}

func TestCreateQuotationFromJSON(t *testing.T) {
	f := setup(t)
	body := `{"fecha":"2026-03-01","cliente_info":"EDIFICIO CENTRAL","empresa_tipo":"B",
		"items":[{"producto":"Cámara","precio":100000,"cantidad":2,"subtotal":200000}]}`
	rec := httptest.NewRecorder()
	f.qh.Create(rec, as(jsonRequest(http.MethodPost, "/quotations", body), auth.RoleAssistant))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	if out["total"].(float64) != 200000 || out["status"] != string(models.StatusPending) {
		t.Fatalf("response %v", out)
	}
	if !strings.HasPrefix(out["reference"].(string), "COT-") {
		t.Fatalf("reference %v", out["reference"])
	}
}

func TestCreateQuotationValidation(t *testing.T) {
	f := setup(t)
	cases := []struct {
		name, body, field string
	}{
		{"unknown profile", `{"cliente_info":"X","empresa_tipo":"C"}`, "empresa_tipo"},
		{"missing client", `{"empresa_tipo":"A"}`, "cliente_info"},
		{"bad email", `{"cliente_info":"X","empresa_tipo":"A","email_destino":"nope"}`, "email_destino"},
		{"bad items", `{"cliente_info":"X","empresa_tipo":"A","items_json":"{oops"}`, "items_json"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		f.qh.Create(rec, as(jsonRequest(http.MethodPost, "/quotations", tc.body), auth.RoleAssistant))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d", tc.name, rec.Code)
			continue
		}
		details, _ := decode(t, rec)["details"].(map[string]any)
		if _, ok := details[tc.field]; !ok {
			t.Errorf("%s: details %v missing %s", tc.name, details, tc.field)
		}
	}
	var n int64
	f.conn.Model(&models.Quotation{}).Count(&n)
	if n != 0 {
		t.Fatalf("invalid requests stored %d quotations", n)
	}
}

func TestPrintQuotation(t *testing.T) {
	f := setup(t)
	q := f.createQuotation(t, "A", "")
	f.conn.Model(q).Update("line_items", `[{"producto":"Cable UTP","unitario":"$ 10.000","cantidad":3,"subtotal":"30.000"}]`)

	rec := httptest.NewRecorder()
	f.qh.Print(rec, withID(httptest.NewRequest(http.MethodGet, "/quotations/x/print", nil), q.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{q.Reference(), "Cable UTP", "$ 10,000", "$ 30,000", "$ 238,000", "border-blue-600", "METAVERSO"} {
		if !strings.Contains(body, want) {
			t.Errorf("print page missing %q", want)
		}
	}

	rec = httptest.NewRecorder()
	f.qh.Print(rec, withID(httptest.NewRequest(http.MethodGet, "/quotations/x/print", nil), 424242))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing quotation status %d", rec.Code)
	}
}

func TestPrintQuotationCorruptedItems(t *testing.T) {
	f := setup(t)
	q := f.createQuotation(t, "B", "")
	f.conn.Model(q).Update("line_items", "{not json")

	rec := httptest.NewRecorder()
	r := withID(httptest.NewRequest(http.MethodGet, "/", nil), q.ID)
	r.Header.Set("Accept", "application/json")
	f.qh.Print(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	out := decode(t, rec)
	if items, ok := out["Items"].([]any); !ok || len(items) != 0 {
		t.Fatalf("Items = %v", out["Items"])
	}
}

func TestDeleteAndResetRequireAdmin(t *testing.T) {
	f := setup(t)
	q := f.createQuotation(t, "A", "")

	rec := httptest.NewRecorder()
	f.qh.Delete(rec, withID(as(jsonRequest(http.MethodPost, "/", ""), auth.RoleAssistant), q.ID))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("assistant delete = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	f.qh.Reset(rec, as(formRequest(http.MethodPost, "/quotations/reset", nil), auth.RoleAssistant))
	if rec.Code != http.StatusSeeOther || !strings.Contains(rec.Header().Get("Location"), "no_autorizado") {
		t.Fatalf("assistant reset = %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = httptest.NewRecorder()
	f.qh.Reset(rec, as(jsonRequest(http.MethodPost, "/quotations/reset", ""), auth.RoleAdmin))
	if rec.Code != http.StatusOK || decode(t, rec)["next_id"].(float64) != 10001 {
		t.Fatalf("admin reset = %d %s", rec.Code, rec.Body.String())
	}
	next := f.createQuotation(t, "B", "")
	if next.ID != 10001 {
		t.Fatalf("id after reset = %d", next.ID)
	}

	// deleting an id that does not exist succeeds
	rec = httptest.NewRecorder()
	f.qh.Delete(rec, withID(as(jsonRequest(http.MethodPost, "/", ""), auth.RoleAdmin), 9))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete missing = %d", rec.Code)
	}
}

func TestDeleteIDZero(t *testing.T) {
	f := setup(t)

	rec := httptest.NewRecorder()
	f.qh.Delete(rec, withID(as(jsonRequest(http.MethodPost, "/", ""), auth.RoleAdmin), 0))
	if rec.Code != http.StatusOK || decode(t, rec)["deleted"].(float64) != 0 {
		t.Fatalf("delete quotation 0 = %d %s", rec.Code, rec.Body.String())
	}
	rec = httptest.NewRecorder()
	f.qh.Delete(rec, withID(as(jsonRequest(http.MethodPost, "/", ""), auth.RoleAssistant), 0))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("assistant delete 0 = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	f.rh.DeleteProduct(rec, withID(as(jsonRequest(http.MethodPost, "/", ""), auth.RoleAdmin), 0))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete product 0 = %d", rec.Code)
	}

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.SetPathValue("id", "abc")
	rec = httptest.NewRecorder()
	f.qh.Delete(rec, as(r, auth.RoleAdmin))
	if rec.Code == http.StatusOK {
		t.Fatal("non-numeric id accepted")
	}
}

func TestSendMapsDispatcherErrors(t *testing.T) {
	f := setup(t)
	q := f.createQuotation(t, "A", "")

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{nil, http.StatusOK, ""},
		{services.ErrNotFound, http.StatusNotFound, "not_found"},
		{&notify.MissingRecipientError{ClientName: q.ClientName}, http.StatusBadRequest, "missing_recipient"},
		{&notify.SendError{Reason: notify.ReasonTimeout}, http.StatusBadGateway, "send_failed"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		f.mailer.err = tc.err
		rec := httptest.NewRecorder()
		f.qh.Send(rec, withID(as(jsonRequest(http.MethodPost, "/", ""), auth.RoleAssistant), q.ID))
		if rec.Code != tc.status {
			t.Errorf("err %v: status %d, want %d", tc.err, rec.Code, tc.status)
			continue
		}
		if tc.code != "" && decode(t, rec)["error"] != tc.code {
			t.Errorf("err %v: body %s", tc.err, rec.Body.String())
		}
	}

	f.mailer.err = &notify.SendError{Reason: "535 auth"}
	rec := httptest.NewRecorder()
	f.qh.Send(rec, withID(as(formRequest(http.MethodPost, "/", nil), auth.RoleAssistant), q.ID))
	if rec.Header().Get("Location") != "/quotations?mensaje=error_envio" {
		t.Fatalf("HTML send failure redirect %q", rec.Header().Get("Location"))
	}
}

func TestSendLink(t *testing.T) {
	f := setup(t)
	withEmail := f.createQuotation(t, "A", "stored@robles.co")
	without := f.createQuotation(t, "A", "")

	rec := httptest.NewRecorder()
	f.qh.SendLink(rec, withID(as(formRequest(http.MethodPost, "/", url.Values{}), auth.RoleAssistant), withEmail.ID))
	if rec.Header().Get("Location") != "/quotations?mensaje=link_enviado" {
		t.Fatalf("redirect %q", rec.Header().Get("Location"))
	}
	rec = httptest.NewRecorder()
	f.qh.SendLink(rec, withID(as(formRequest(http.MethodPost, "/", url.Values{"email": {"otro@cliente.co"}}), auth.RoleAssistant), withEmail.ID))
	if got := f.mailer.linkDests; len(got) != 2 || got[0] != "stored@robles.co" || got[1] != "otro@cliente.co" {
		t.Fatalf("destinations %v", got)
	}

	rec = httptest.NewRecorder()
	f.qh.SendLink(rec, withID(as(formRequest(http.MethodPost, "/", url.Values{}), auth.RoleAssistant), without.ID))
	if rec.Header().Get("Location") != "/quotations?mensaje=sin_email" {
		t.Fatalf("no recipient redirect %q", rec.Header().Get("Location"))
	}

	f.mailer.linkOK = false
	rec = httptest.NewRecorder()
	r := formRequest(http.MethodPost, "/", url.Values{"email": {"a@b.co"}})
	r.Header.Set("Accept", "application/json")
	f.qh.SendLink(rec, withID(as(r, auth.RoleAssistant), withEmail.ID))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("failed link = %d", rec.Code)
	}
}

func TestSetStatus(t *testing.T) {
	f := setup(t)
	q := f.createQuotation(t, "A", "")

	post := func(role, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		f.qh.SetStatus(rec, withID(as(jsonRequest(http.MethodPost, "/", body), role), q.ID))
		return rec
	}
	if rec := post(auth.RoleAssistant, `{"status":"approved"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("assistant = %d", rec.Code)
	}
	if rec := post(auth.RoleAdmin, `{"status":"maybe"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown status = %d", rec.Code)
	}
	rec := post(auth.RoleAdmin, `{"status":"Aprobada"}`)
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != string(models.StatusApproved) {
		t.Fatalf("approve = %d %s", rec.Code, rec.Body.String())
	}
	rec = post(auth.RoleAdmin, `{"status":"pending"}`)
	if rec.Code != http.StatusBadRequest || decode(t, rec)["error"] != services.ErrInvalidTransition.Error() {
		t.Fatalf("approved -> pending = %d %s", rec.Code, rec.Body.String())
	}
}

func TestQuotationsPage(t *testing.T) {
	f := setup(t)
	view.SetCanResolver(func(*http.Request, string, string) bool { return true })
	f.createQuotation(t, "B", "x@y.co")
	if err := f.records.SaveProduct(context.Background(), &models.Product{Code: "c1", Name: "cámara domo", Price: 150000}); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	f.qh.List(rec, as(httptest.NewRequest(http.MethodGet, "/quotations", nil), auth.RoleAdmin))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{"CONJUNTO LOS ROBLES", "$ 200,000", "CÁMARA DOMO", "Reiniciar consecutivo", "Pendiente"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestSaveClient(t *testing.T) {
	f := setup(t)
	form := url.Values{
		"nombre": {"conjunto los robles"}, "nit": {"900"}, "encargado": {"ana"},
		"direccion": {"cra 1"}, "telefono": {"300"}, "email": {"ana@robles.co"}, "tipo": {models.KindPH},
	}
	rec := httptest.NewRecorder()
	f.rh.SaveClient(rec, as(formRequest(http.MethodPost, "/clients", form), auth.RoleAssistant))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/clients?mensaje=guardado" {
		t.Fatalf("save = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	var c models.Client
	f.conn.First(&c)
	if c.Name != "CONJUNTO LOS ROBLES" || c.Contact != "ANA" {
		t.Fatalf("stored %+v", c)
	}

	form.Set("tipo", "Otro")
	rec = httptest.NewRecorder()
	r := formRequest(http.MethodPost, "/clients", form)
	r.Header.Set("Accept", "application/json")
	f.rh.SaveClient(rec, as(r, auth.RoleAssistant))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid kind = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	f.rh.DeleteClient(rec, withID(as(formRequest(http.MethodPost, "/", nil), auth.RoleAssistant), c.ID))
	if !strings.Contains(rec.Header().Get("Location"), "no_autorizado") {
		t.Fatalf("assistant delete redirect %q", rec.Header().Get("Location"))
	}
}

func TestSaveProductParsesMoney(t *testing.T) {
	f := setup(t)
	form := url.Values{"codigo": {"cam-1"}, "nombre": {"cámara"}, "costo": {"$ 80.000"}, "precio": {"100.000"}}
	rec := httptest.NewRecorder()
	r := formRequest(http.MethodPost, "/products", form)
	r.Header.Set("Accept", "application/json")
	f.rh.SaveProduct(rec, as(r, auth.RoleAssistant))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	if out["cost"].(float64) != 80000 || out["price"].(float64) != 100000 {
		t.Fatalf("product %v", out)
	}

	form.Set("precio", "gratis")
	rec = httptest.NewRecorder()
	r = formRequest(http.MethodPost, "/products", form)
	r.Header.Set("Accept", "application/json")
	f.rh.SaveProduct(rec, as(r, auth.RoleAssistant))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad price = %d", rec.Code)
	}
}

func TestSaveSurvey(t *testing.T) {
	f := setup(t)
	form := url.Values{
		"cliente": {"ROBLES"}, "nombre_proyecto": {"torre norte"},
		"torres": {"2"}, "pisos": {"10"}, "aptos_piso": {"4"}, "largo_m": {"12,5"},
		"amenidades_json": {`["Piscina","Gimnasio"]`},
	}
	rec := httptest.NewRecorder()
	f.rh.SaveSurvey(rec, as(formRequest(http.MethodPost, "/surveys", form), auth.RoleAssistant))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status %d", rec.Code)
	}
	var s models.Survey
	f.conn.First(&s)
	if s.TotalUnits != 80 || s.LengthM != 12.5 || s.ProjectName != "TORRE NORTE" {
		t.Fatalf("stored %+v", s)
	}

	rec = httptest.NewRecorder()
	f.rh.ListSurveys(rec, as(httptest.NewRequest(http.MethodGet, "/surveys", nil), auth.RoleAssistant))
	if !strings.Contains(rec.Body.String(), "Piscina, Gimnasio") {
		t.Fatalf("amenities not listed:\n%s", rec.Body.String())
	}
}

func TestLogin(t *testing.T) {
	f := setup(t)
	h := NewAuthHandler(f.settings)

	rec := httptest.NewRecorder()
	h.Login(rec, formRequest(http.MethodPost, "/login", url.Values{"username": {"secre"}, "password": {"secre123"}}))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("login = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Fatal("no session cookie")
	}

	rec = httptest.NewRecorder()
	h.Login(rec, formRequest(http.MethodPost, "/login", url.Values{"username": {"secre"}, "password": {"nope"}}))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Credenciales incorrectas") {
		t.Fatalf("bad login = %d %s", rec.Code, rec.Body.String())
	}
}

func TestSettingsSave(t *testing.T) {
	f := setup(t)
	h := NewSettingsHandler(f.settings)
	form := url.Values{}
	for _, s := range []string{"a", "b"} {
		form.Set("nombre_"+s, "EMPRESA "+strings.ToUpper(s))
		form.Set("email_"+s, s+"@metaverso.co")
	}

	rec := httptest.NewRecorder()
	h.Save(rec, as(formRequest(http.MethodPost, "/settings", form), auth.RoleAdmin))
	if rec.Header().Get("Location") != "/settings?mensaje=guardado" {
		t.Fatalf("save redirect %q", rec.Header().Get("Location"))
	}
	p, _ := f.settings.Profile(context.Background(), "B")
	if p.Name != "EMPRESA B" || p.Email != "b@metaverso.co" {
		t.Fatalf("profile B = %+v", p)
	}

	rec = httptest.NewRecorder()
	h.Show(rec, as(httptest.NewRequest(http.MethodGet, "/settings", nil), auth.RoleAdmin))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `name="nombre_b"`) {
		t.Fatalf("settings page = %d", rec.Code)
	}
}
