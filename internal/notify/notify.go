// Package notify renders quotations into HTML emails and hands them to an
// SMTP relay. Each send is a single attempt bounded by a timeout.
package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/sallegelias/metaverso-erp/internal/metrics"
	"github.com/sallegelias/metaverso-erp/internal/models"
	"github.com/sallegelias/metaverso-erp/internal/money"
	"github.com/sallegelias/metaverso-erp/internal/services"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// LogoCID is the content id the HTML body uses for the inline logo.
const LogoCID = "logo_empresa"

// DefaultLogo is used when the company profile has no logo configured.
const DefaultLogo = "logo_sas.png"

// ReasonTimeout is the SendError reason when the relay does not answer in time.
const ReasonTimeout = "transport_timeout"

// MissingRecipientError means the quotation has no notification address.
// The relay is not contacted.
type MissingRecipientError struct {
	ClientName string
}

func (e *MissingRecipientError) Error() string {
	return fmt.Sprintf("client %s has no email address", e.ClientName)
}

// SendError is a failed relay submission.
type SendError struct {
	Reason string
	Err    error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("send failed (%s): %v", e.Reason, e.Err)
	}
	return "send failed: " + e.Reason
}

func (e *SendError) Unwrap() error { return e.Err }

// Transport submits a composed message. Send must stop and return once ctx
// is done; a message is only delivered if Send returns nil.
type Transport interface {
	Send(ctx context.Context, msg *gomail.Message) error
}

// Quotations is the part of the quotation engine the dispatcher needs.
type Quotations interface {
	Get(ctx context.Context, id uint) (*models.Quotation, error)
	MarkSent(ctx context.Context, id uint) error
}

// Profiles looks up company profiles for the logo.
type Profiles interface {
	Profile(ctx context.Context, id string) (*models.CompanyProfile, error)
}

// Options configures a Dispatcher.
type Options struct {
	From      string
	PublicURL string
	StaticDir string
	Timeout   time.Duration
}

// Dispatcher builds and sends quotation emails.
type Dispatcher struct {
	transport  Transport
	quotations Quotations
	profiles   Profiles
	opts       Options
	log        *zap.Logger
	metrics    *metrics.Metrics
}

func NewDispatcher(t Transport, q Quotations, p Profiles, opts Options, log *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Dispatcher{transport: t, quotations: q, profiles: p, opts: opts, log: log, metrics: m}
}

type emailRow struct {
	Description string
	Quantity    int
	Price       string
	Subtotal    string
	Background  string
}

type quotationEmail struct {
	ID          uint
	Date        string
	ClientName  string
	CompanyName string
	Rows        []emailRow
	Total       string
	ReplyTo     string
	HasLogo     bool
	LogoCID     string
}

type linkEmail struct {
	ClientName string
	Reference  string
	Total      string
	Link       string
}

// SendQuotationEmail mails the full quotation to its stored recipient.
// It returns services.ErrNotFound, *MissingRecipientError or *SendError;
// nil means the relay accepted the message.
func (d *Dispatcher) SendQuotationEmail(ctx context.Context, id uint) error {
	q, err := d.quotations.Get(ctx, id)
	if err != nil {
		return err
	}
	if q.NotifyEmail == "" {
		d.metrics.EmailSent("full", "missing_recipient")
		return &MissingRecipientError{ClientName: q.ClientName}
	}

	items, err := q.DisplayItems()
	if err != nil {
		d.log.Warn("malformed stored line items", zap.Uint("id", q.ID), zap.Error(err))
	}
	data := quotationEmail{
		ID:         q.ID,
		Date:       q.Date,
		ClientName: q.ClientName,
		Rows:       make([]emailRow, 0, len(items)),
		Total:      money.Format(q.Total),
		ReplyTo:    d.opts.From,
		LogoCID:    LogoCID,
	}
	for i, it := range items {
		bg := "#ffffff"
		if i%2 == 1 {
			bg = "#f8fafc"
		}
		data.Rows = append(data.Rows, emailRow{
			Description: it.Description,
			Quantity:    it.Quantity,
			Price:       money.Format(it.UnitPrice),
			Subtotal:    money.Format(it.Subtotal),
			Background:  bg,
		})
	}

	logoFile := DefaultLogo
	if c, err := d.profiles.Profile(ctx, q.Profile()); err == nil {
		data.CompanyName = c.Name
		if c.LogoImage != "" {
			logoFile = c.LogoImage
		}
	}
	logoName, logo := d.logo(logoFile)
	data.HasLogo = logo != nil

	body, err := render("quotation.html", data)
	if err != nil {
		return &SendError{Reason: "render", Err: err}
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", d.opts.From)
	msg.SetHeader("To", q.NotifyEmail)
	msg.SetHeader("Subject", fmt.Sprintf("Cotización #%d | %s", q.ID, q.ClientName))
	msg.SetBody("text/html", body)
	if logo != nil {
		msg.Embed(logoName,
			gomail.SetHeader(map[string][]string{"Content-ID": {"<" + LogoCID + ">"}}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(logo)
				return err
			}))
	}

	if err := d.submit(ctx, msg); err != nil {
		d.metrics.EmailSent("full", outcome(err))
		d.log.Error("quotation email failed", zap.Uint("id", q.ID), zap.String("to", q.NotifyEmail), zap.Error(err))
		return err
	}
	d.metrics.EmailSent("full", "sent")
	d.log.Info("quotation email sent", zap.Uint("id", q.ID), zap.String("to", q.NotifyEmail))

	if err := d.quotations.MarkSent(ctx, q.ID); err != nil {
		d.log.Warn("could not mark quotation as sent", zap.Uint("id", q.ID), zap.Error(err))
	}
	return nil
}

// SendQuotationLink mails a short message linking to the printable quotation.
func (d *Dispatcher) SendQuotationLink(ctx context.Context, destination, clientName string, id uint, total float64) bool {
	if destination == "" {
		d.metrics.EmailSent("link", "missing_recipient")
		d.log.Warn("quotation link has no destination", zap.Uint("id", id), zap.String("client", clientName))
		return false
	}
	ref := (&models.Quotation{ID: id}).Reference()
	data := linkEmail{
		ClientName: clientName,
		Reference:  ref,
		Total:      money.Format(total),
		Link:       d.PrintURL(id),
	}
	body, err := render("link.html", data)
	if err != nil {
		d.log.Error("render link email", zap.Error(err))
		return false
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", d.opts.From)
	msg.SetHeader("To", destination)
	msg.SetHeader("Subject", fmt.Sprintf("📄 Cotización #%s - Metaverso Tech", ref))
	msg.SetBody("text/html", body)

	if err := d.submit(ctx, msg); err != nil {
		d.metrics.EmailSent("link", outcome(err))
		d.log.Error("quotation link email failed", zap.Uint("id", id), zap.String("to", destination), zap.Error(err))
		return false
	}
	d.metrics.EmailSent("link", "sent")
	d.log.Info("quotation link sent", zap.Uint("id", id), zap.String("to", destination))
	return true
}

// PrintURL is the public address of the printable quotation.
func (d *Dispatcher) PrintURL(id uint) string {
	return d.opts.PublicURL + "/quotations/" + strconv.FormatUint(uint64(id), 10) + "/print"
}

// submit hands msg to the transport with the configured timeout. The call
// is synchronous so a timed-out send has been aborted when this returns.
func (d *Dispatcher) submit(ctx context.Context, msg *gomail.Message) error {
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	err := d.transport.Send(ctx, msg)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return &SendError{Reason: ReasonTimeout, Err: err}
	}
	var se *SendError
	if errors.As(err, &se) {
		return se
	}
	return &SendError{Reason: err.Error(), Err: err}
}

// logo reads name from the static directory. A missing or unreadable file
// yields nil and the email goes out without it.
func (d *Dispatcher) logo(name string) (string, []byte) {
	data, err := os.ReadFile(filepath.Join(d.opts.StaticDir, filepath.Base(name)))
	if err != nil {
		d.log.Debug("logo not embedded", zap.String("file", name), zap.Error(err))
		return "", nil
	}
	return filepath.Base(name), data
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func outcome(err error) string {
	var se *SendError
	if errors.As(err, &se) && se.Reason == ReasonTimeout {
		return "timeout"
	}
	return "failed"
}

var _ Quotations = (*services.QuotationService)(nil)
var _ Profiles = (*services.SettingsService)(nil)
