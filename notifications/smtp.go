package notifications

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"blog-cms/config"
	"blog-cms/logging"
	"blog-cms/metrics"
	"blog-cms/oops"

	"github.com/jpillora/backoff"
)

const articlePublishedTemplate = "email_article_published.html"

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPDispatcher queues messages in memory and delivers them from a fixed
// pool of workers. Failed sends are retried with exponential backoff.
type SMTPDispatcher struct {
	cfg   config.SMTPConfig
	views BodyRenderer
	send  SendFunc

	MaxAttempts int
	Backoff     backoff.Backoff

	queue  chan Message
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewSMTPDispatcher starts cfg.Workers workers. A nil send uses smtp.SendMail.
func NewSMTPDispatcher(cfg config.NotifyConfig, views BodyRenderer, send SendFunc) *SMTPDispatcher {
	if send == nil {
		send = smtp.SendMail
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	buffer := cfg.Buffer
	if buffer < 0 {
		buffer = 0
	}

	d := &SMTPDispatcher{
		cfg:         cfg.SMTP,
		views:       views,
		send:        send,
		MaxAttempts: 3,
		Backoff: backoff.Backoff{
			Min:    time.Second,
			Max:    30 * time.Second,
			Factor: 2,
		},
		queue: make(chan Message, buffer),
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work()
	}
	return d
}

func (d *SMTPDispatcher) Name() string { return DriverSMTP }

// Dispatch enqueues msg without blocking. It fails when the queue is full.
func (d *SMTPDispatcher) Dispatch(ctx context.Context, msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *SMTPDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	return nil
}

func (d *SMTPDispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		err := d.deliver(msg)
		metrics.RecordNotification("smtp_delivery", err)
		if err != nil {
			logging.Error().
				Err(err).
				Str("message_id", msg.ID).
				Str("to", msg.ToAddress).
				Msg("failed to deliver article notification")
		}
	}
}

func (d *SMTPDispatcher) deliver(msg Message) error {
	body, err := d.renderBody(msg)
	if err != nil {
		return err
	}

	contents := prepMailContents(
		makeHeaderAddress(msg.ToAddress, msg.ToName),
		makeHeaderAddress(d.cfg.FromAddress, d.cfg.FromName),
		fmt.Sprintf("New article: %s", msg.Heading),
		body,
	)

	var auth smtp.Auth
	if d.cfg.Username != "" {
		auth = smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)

	boff := d.Backoff
	attempts := d.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; ; attempt++ {
		err = d.send(addr, auth, d.cfg.FromAddress, []string{msg.ToAddress}, contents)
		if err == nil {
			return nil
		}
		if attempt >= attempts {
			return oops.New(err, "failed to send email after %d attempts", attempt)
		}

		dur := boff.Duration()
		logging.Warn().
			Err(err).
			Str("message_id", msg.ID).
			Dur("retrying after", dur).
			Msg("email send failed")
		time.Sleep(dur)
	}
}

func (d *SMTPDispatcher) renderBody(msg Message) (string, error) {
	var buf bytes.Buffer
	if err := d.views.Execute(&buf, articlePublishedTemplate, msg); err != nil {
		return "", oops.New(err, "failed to render template for email")
	}
	return strings.ReplaceAll(buf.String(), "\n", "\r\n"), nil
}

func makeHeaderAddress(email, fullname string) string {
	if fullname == "" {
		return email
	}
	encoded := mime.BEncoding.Encode("utf-8", fullname)
	if encoded == fullname {
		encoded = fmt.Sprintf("\"%s\"", strings.ReplaceAll(encoded, `"`, `\"`))
	}
	return fmt.Sprintf("%s <%s>", encoded, email)
}

func prepMailContents(toLine, fromLine, subject, contentHTML string) []byte {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("To: %s\r\n", toLine))
	builder.WriteString(fmt.Sprintf("From: %s\r\n", fromLine))
	builder.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z)))
	builder.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject)))
	builder.WriteString("MIME-Version: 1.0\r\n")
	builder.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	builder.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	builder.WriteString("\r\n")
	writer := quotedprintable.NewWriter(&builder)
	writer.Write([]byte(contentHTML))
	writer.Close()
	builder.WriteString("\r\n")

	return []byte(builder.String())
}
