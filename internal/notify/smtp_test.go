package notify

import (
	"context"
	"errors"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/sallegelias/metaverso-erp/internal/config"
)

// fakeRelay speaks just enough SMTP for net/smtp. Greeting is delayed by
// delay to simulate a stalled server.
type fakeRelay struct {
	ln    net.Listener
	delay time.Duration
	mu    sync.Mutex
	msgs  []string
}

func startRelay(t *testing.T, delay time.Duration) *fakeRelay {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	r := &fakeRelay{ln: ln, delay: delay}
	go r.serve()
	t.Cleanup(func() { ln.Close() })
	return r
}

func (r *fakeRelay) serve() {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return
		}
		go r.handle(conn)
	}
}

func (r *fakeRelay) handle(conn net.Conn) {
	defer conn.Close()
	time.Sleep(r.delay)
	tp := textproto.NewConn(conn)
	if err := tp.PrintfLine("220 relay.test ESMTP"); err != nil {
		return
	}
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		switch strings.ToUpper(strings.SplitN(line, " ", 2)[0]) {
		case "EHLO", "HELO":
			tp.PrintfLine("250 relay.test")
		case "MAIL", "RCPT", "RSET", "NOOP":
			tp.PrintfLine("250 OK")
		case "DATA":
			tp.PrintfLine("354 go ahead")
			b, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			r.mu.Lock()
			r.msgs = append(r.msgs, string(b))
			r.mu.Unlock()
			tp.PrintfLine("250 queued")
		case "QUIT":
			tp.PrintfLine("221 bye")
			return
		default:
			tp.PrintfLine("502 unsupported")
		}
	}
}

func (r *fakeRelay) delivered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func (r *fakeRelay) transport() *SMTPTransport {
	addr := r.ln.Addr().(*net.TCPAddr)
	return NewSMTPTransport(config.MailConfig{Host: "127.0.0.1", Port: addr.Port})
}

func TestSMTPTransportDelivers(t *testing.T) {
	relay := startRelay(t, 0)

	msg := gomail.NewMessage()
	msg.SetHeader("From", "cotizaciones@metaverso.co")
	msg.SetHeader("To", "admin@robles.co")
	msg.SetHeader("Subject", "Prueba")
	msg.SetBody("text/html", "<p>hola</p>")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := relay.transport().Send(ctx, msg); err != nil {
		t.Fatalf("Send() = %v", err)
	}
	got := relay.delivered()
	if len(got) != 1 || !strings.Contains(got[0], "Subject: Prueba") || !strings.Contains(got[0], "admin@robles.co") {
		t.Fatalf("relay received %q", got)
	}
}

func TestSMTPTransportConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	tr := NewSMTPTransport(config.MailConfig{Host: "127.0.0.1", Port: port})
	err = tr.Send(context.Background(), gomail.NewMessage())
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Send() = %v, want a dial error", err)
	}
}

func TestDispatcherTimeoutAbortsDelivery(t *testing.T) {
	relay := startRelay(t, 300*time.Millisecond)
	d, q := newFixture(t, relay.transport(), false)
	d.opts.Timeout = 50 * time.Millisecond

	start := time.Now()
	err := d.SendQuotationEmail(context.Background(), 10001)
	var se *SendError
	if !errors.As(err, &se) || se.Reason != ReasonTimeout {
		t.Fatalf("expected transport_timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Fatalf("send returned after %v", elapsed)
	}

	// Give the stalled relay time to finish; nothing may arrive.
	time.Sleep(500 * time.Millisecond)
	if got := relay.delivered(); len(got) != 0 {
		t.Fatalf("%d messages delivered after a reported timeout", len(got))
	}
	if len(q.marked) != 0 {
		t.Fatal("timed-out send marked the quotation")
	}
}
