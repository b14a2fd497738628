package notify

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/smtp"
	"strconv"

	"gopkg.in/gomail.v2"

	"github.com/sallegelias/metaverso-erp/internal/config"
)

// SMTPTransport submits messages through an authenticated relay. Port 465
// uses implicit TLS; otherwise the connection is upgraded with STARTTLS when
// the server offers it.
//
// gomail.Dialer has no way to abort a stalled relay, so the session is
// driven here over a connection that is closed as soon as ctx is done.
type SMTPTransport struct {
	host     string
	port     int
	username string
	password string
}

func NewSMTPTransport(cfg config.MailConfig) *SMTPTransport {
	return &SMTPTransport{host: cfg.Host, port: cfg.Port, username: cfg.Username, password: cfg.Password}
}

// Send dials, authenticates and delivers msg. When ctx expires mid-session
// the connection is dropped before the relay accepts the message and
// ctx.Err() is returned.
func (t *SMTPTransport) Send(ctx context.Context, msg *gomail.Message) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(t.host, strconv.Itoa(t.port)))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := t.deliver(conn, msg); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (t *SMTPTransport) deliver(conn net.Conn, msg *gomail.Message) error {
	if t.port == 465 {
		conn = tls.Client(conn, t.tlsConfig())
	}
	c, err := smtp.NewClient(conn, t.host)
	if err != nil {
		return err
	}
	defer c.Close()

	if t.port != 465 {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(t.tlsConfig()); err != nil {
				return err
			}
		}
	}
	if t.username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", t.username, t.password, t.host)); err != nil {
				return err
			}
		}
	}

	send := gomail.SendFunc(func(from string, to []string, m io.WriterTo) error {
		if err := c.Mail(from); err != nil {
			return err
		}
		for _, rcpt := range to {
			if err := c.Rcpt(rcpt); err != nil {
				return err
			}
		}
		w, err := c.Data()
		if err != nil {
			return err
		}
		if _, err := m.WriteTo(w); err != nil {
			return err
		}
		return w.Close()
	})
	if err := gomail.Send(send, msg); err != nil {
		return err
	}
	// The relay has accepted the message once DATA is closed.
	_ = c.Quit()
	return nil
}

func (t *SMTPTransport) tlsConfig() *tls.Config {
	return &tls.Config{ServerName: t.host}
}
