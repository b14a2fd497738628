package policy

import (
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sallegelias/metaverso-erp/internal/config"
	"github.com/sallegelias/metaverso-erp/internal/handlers"
	"github.com/sallegelias/metaverso-erp/internal/metrics"
	"github.com/sallegelias/metaverso-erp/internal/notify"
	"github.com/sallegelias/metaverso-erp/internal/services"
)

// Deps is what the router needs from main.
type Deps struct {
	DB      *gorm.DB
	Config  *config.Config
	Log     *zap.Logger
	Metrics *metrics.Metrics
	// Redis is optional; without it roles are cached in process only.
	Redis *redis.Client
	// Transport defaults to the SMTP relay from Config.Mail.
	Transport notify.Transport
}

// RouterConfig holds configured handlers and middleware for the application.
type RouterConfig struct {
	// AuthGate provides authorization checks and middleware
	AuthGate *AuthGate

	AuthHandler      *handlers.AuthHandler
	RecordHandler    *handlers.RecordHandler
	QuotationHandler *handlers.QuotationHandler
	ReportHandler    *handlers.ReportHandler
	SettingsHandler  *handlers.SettingsHandler

	Quotations *services.QuotationService
	Settings   *services.SettingsService
	Dispatcher *notify.Dispatcher
}

// NewRouterConfig wires services, the mail dispatcher and handlers.
func NewRouterConfig(d Deps) *RouterConfig {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	cfg := d.Config
	if cfg == nil {
		cfg = config.Load()
	}

	authGate := NewAuthGate(d.DB, cfg.Redis.RoleTTL, d.Redis, log.Named("gate"))

	quotations := services.NewQuotationService(d.DB, log.Named("quotations"), d.Metrics)
	records := services.NewRecordService(d.DB, log.Named("records"))
	reports := services.NewReportService(d.DB)
	settings := services.NewSettingsService(d.DB, log.Named("settings"))
	settings.OnUserChanged(authGate.InvalidateUser)

	transport := d.Transport
	if transport == nil {
		transport = notify.NewSMTPTransport(cfg.Mail)
	}
	dispatcher := notify.NewDispatcher(transport, quotations, settings, notify.Options{
		From:      cfg.Mail.From,
		PublicURL: cfg.App.PublicURL,
		StaticDir: cfg.App.StaticDir,
		Timeout:   cfg.Mail.Timeout,
	}, log.Named("notify"), d.Metrics)

	return &RouterConfig{
		AuthGate:         authGate,
		AuthHandler:      handlers.NewAuthHandler(settings),
		RecordHandler:    handlers.NewRecordHandler(records),
		QuotationHandler: handlers.NewQuotationHandler(quotations, records, settings, dispatcher),
		ReportHandler:    handlers.NewReportHandler(reports),
		SettingsHandler:  handlers.NewSettingsHandler(settings),
		Quotations:       quotations,
		Settings:         settings,
		Dispatcher:       dispatcher,
	}
}
