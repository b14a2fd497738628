package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sallegelias/metaverso-erp/auth"
	"github.com/sallegelias/metaverso-erp/gate"
	"github.com/sallegelias/metaverso-erp/httpx"
	"github.com/sallegelias/metaverso-erp/i18n"
	"github.com/sallegelias/metaverso-erp/internal/logger"
	"github.com/sallegelias/metaverso-erp/internal/metrics"
	"github.com/sallegelias/metaverso-erp/internal/policy"
	"github.com/sallegelias/metaverso-erp/view"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux       *http.ServeMux
	handler   http.Handler
	db        *gorm.DB
	routerCfg *policy.RouterConfig
	staticDir string
}

// AppOptions carries the pieces of the app that main builds up front.
type AppOptions struct {
	Log       *zap.Logger
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	StaticDir string
}

// NewApp creates a new application with all routes configured.
func NewApp(db *gorm.DB, routerCfg *policy.RouterConfig, opts AppOptions) *App {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.StaticDir == "" {
		opts.StaticDir = "static"
	}
	app := &App{
		mux:       http.NewServeMux(),
		db:        db,
		routerCfg: routerCfg,
		staticDir: opts.StaticDir,
	}

	// templates only see callbacks, never the gate itself
	ag := routerCfg.AuthGate
	view.SetCanResolver(func(r *http.Request, resource, action string) bool {
		return ag.Can(r.Context(), gate.Action(action), resource)
	})
	view.SetIsAdminResolver(func(r *http.Request) bool {
		return ag.IsAdmin(r.Context())
	})

	app.setupRoutes(opts.Gatherer)

	// metrics wraps the mux directly so the matched pattern is visible
	var h http.Handler = app.mux
	if opts.Metrics != nil {
		h = opts.Metrics.Middleware(h)
	}
	h = ag.AttachRole(h)
	h = withPreferences(h)
	h = logger.Middleware(opts.Log)(h)
	app.handler = auth.Middleware(h)
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes(g prometheus.Gatherer) {
	// ─────────────────────────────────────────────────────────────────────────
	// Public routes
	// ─────────────────────────────────────────────────────────────────────────
	ah := a.routerCfg.AuthHandler
	qh := a.routerCfg.QuotationHandler

	a.mux.HandleFunc("GET /{$}", ah.Home)
	a.mux.HandleFunc("GET /login", ah.LoginForm)
	a.mux.HandleFunc("POST /login", ah.Login)
	a.mux.HandleFunc("GET /logout", ah.Logout)
	a.mux.HandleFunc("POST /logout", ah.Logout)

	// the print page is opened from the link email without a session
	a.mux.HandleFunc("GET /quotations/{id}/print", qh.Print)

	a.mux.HandleFunc("GET /healthz", a.healthz)
	if g != nil {
		a.mux.Handle("GET /metrics", metrics.Handler(g))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Authenticated routes
	// ─────────────────────────────────────────────────────────────────────────
	a.mux.Handle("GET /dashboard",
		a.guard(policy.ResourceDashboard, gate.ActionView, a.routerCfg.ReportHandler.Dashboard))

	// ─────────────────────────────────────────────────────────────────────────
	// Record modules: list, upsert, delete
	// ─────────────────────────────────────────────────────────────────────────
	rh := a.routerCfg.RecordHandler
	records := []struct {
		path, resource     string
		list, save, delete http.HandlerFunc
	}{
		{"/clients", policy.ResourceClient, rh.ListClients, rh.SaveClient, rh.DeleteClient},
		{"/suppliers", policy.ResourceSupplier, rh.ListSuppliers, rh.SaveSupplier, rh.DeleteSupplier},
		{"/products", policy.ResourceProduct, rh.ListProducts, rh.SaveProduct, rh.DeleteProduct},
		{"/surveys", policy.ResourceSurvey, rh.ListSurveys, rh.SaveSurvey, rh.DeleteSurvey},
	}
	for _, rec := range records {
		a.mux.Handle("GET "+rec.path, a.guard(rec.resource, gate.ActionList, rec.list))
		a.mux.Handle("POST "+rec.path, a.guard(rec.resource, gate.ActionSave, rec.save))
		a.mux.Handle("POST "+rec.path+"/{id}/delete", a.guard(rec.resource, gate.ActionDelete, rec.delete))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Quotations
	// ─────────────────────────────────────────────────────────────────────────
	q := policy.ResourceQuotation
	a.mux.Handle("GET /quotations", a.guard(q, gate.ActionList, qh.List))
	a.mux.Handle("POST /quotations", a.guard(q, gate.ActionSave, qh.Create))
	a.mux.Handle("POST /quotations/reset", a.guard(q, gate.ActionReset, qh.Reset))
	a.mux.Handle("POST /quotations/{id}/delete", a.guard(q, gate.ActionDelete, qh.Delete))
	a.mux.Handle("POST /quotations/{id}/send", a.guard(q, gate.ActionSend, qh.Send))
	a.mux.Handle("POST /quotations/{id}/send-link", a.guard(q, gate.ActionSend, qh.SendLink))
	a.mux.Handle("POST /quotations/{id}/status", a.guard(q, gate.ActionUpdate, qh.SetStatus))

	// ─────────────────────────────────────────────────────────────────────────
	// Admin routes
	// ─────────────────────────────────────────────────────────────────────────
	sh := a.routerCfg.SettingsHandler
	a.mux.Handle("GET /reports", a.requireAdmin(http.HandlerFunc(a.routerCfg.ReportHandler.Sales)))
	a.mux.Handle("GET /settings", a.requireAdmin(http.HandlerFunc(sh.Show)))
	a.mux.Handle("POST /settings", a.requireAdmin(http.HandlerFunc(sh.Save)))
	a.mux.Handle("POST /settings/password", a.requireAdmin(http.HandlerFunc(sh.ChangePassword)))
	a.mux.Handle("POST /settings/role", a.requireAdmin(http.HandlerFunc(sh.ChangeRole)))

	// ─────────────────────────────────────────────────────────────────────────
	// Static files
	// ─────────────────────────────────────────────────────────────────────────
	a.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(a.staticDir))))
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

// guard requires a session and the given permission.
func (a *App) guard(resource string, action gate.Action, h http.HandlerFunc) http.Handler {
	return a.requireAuth(a.requirePermission(resource, action)(h))
}

// requireAuth wraps a handler to require authentication.
func (a *App) requireAuth(next http.Handler) http.Handler {
	return auth.RequireAuth(next)
}

// requireAdmin wraps a handler to require the admin role.
func (a *App) requireAdmin(next http.Handler) http.Handler {
	return a.requireAuth(a.routerCfg.AuthGate.RequireAdmin()(next))
}

// requirePermission wraps a handler to require specific resource permission.
func (a *App) requirePermission(resourceType string, action gate.Action) func(http.Handler) http.Handler {
	return a.routerCfg.AuthGate.RequirePermission(resourceType, action)
}

// withPreferences injects the language preference from query, cookie or
// Accept-Language, in that order.
func withPreferences(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := i18n.DetectLanguage(r.Header.Get("Accept-Language"))
		if c, err := r.Cookie("lang"); err == nil && i18n.Supported(c.Value) {
			lang = c.Value
		}
		if q := r.URL.Query().Get("lang"); i18n.Supported(q) {
			lang = q
			http.SetCookie(w, &http.Cookie{
				Name:     "lang",
				Value:    lang,
				Path:     "/",
				MaxAge:   86400 * 365,
				HttpOnly: true,
			})
		}
		next.ServeHTTP(w, r.WithContext(i18n.WithLang(r.Context(), lang)))
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Operations
// ─────────────────────────────────────────────────────────────────────────────

func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("health check failed", zap.Error(err))
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
