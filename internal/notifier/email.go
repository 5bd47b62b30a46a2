package notifier

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"time"

	"monitor-precos/internal/models"
)

// EmailConfig contém os dados do servidor SMTP
type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailChannel envia alertas por e-mail via SMTP
type EmailChannel struct {
	cfg      EmailConfig
	sendMail sendMailFunc
	now      func() time.Time
}

// NewEmailChannel cria o canal de e-mail
func NewEmailChannel(cfg EmailConfig) *EmailChannel {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &EmailChannel{cfg: cfg, sendMail: smtp.SendMail, now: time.Now}
}

func (c *EmailChannel) Name() models.Channel { return models.ChannelEmail }

func (c *EmailChannel) IsConfigured() bool {
	return c.cfg.Host != "" && c.cfg.User != "" && c.cfg.Password != "" && c.cfg.From != ""
}

func (c *EmailChannel) Send(ctx context.Context, recipient, subject, message string, product *models.TrackedProduct) models.NotificationOutcome {
	if !c.IsConfigured() {
		return failure(c.Name(), recipient, notConfigured)
	}
	if err := ctx.Err(); err != nil {
		return failure(c.Name(), recipient, err.Error())
	}

	msg, err := c.build(recipient, subject, message, product)
	if err != nil {
		return failure(c.Name(), recipient, err.Error())
	}

	addr := net.JoinHostPort(c.cfg.Host, fmt.Sprint(c.cfg.Port))
	auth := smtp.PlainAuth("", c.cfg.User, c.cfg.Password, c.cfg.Host)

	// smtp.SendMail não aceita contexto
	done := make(chan error, 1)
	go func() { done <- c.sendMail(addr, auth, c.cfg.From, []string{recipient}, msg) }()

	select {
	case err := <-done:
		if err != nil {
			return failure(c.Name(), recipient, err.Error())
		}
		return success(c.Name(), recipient)
	case <-ctx.Done():
		return failure(c.Name(), recipient, ctx.Err().Error())
	}
}

// build monta a mensagem multipart/alternative com texto e HTML
func (c *EmailChannel) build(recipient, subject, message string, product *models.TrackedProduct) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=UTF-8", message},
		{"text/html; charset=UTF-8", formatHTML(subject, message, product)},
	}
	for _, p := range parts {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, err
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(p.content)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", c.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "Date: %s\r\n", c.now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}
