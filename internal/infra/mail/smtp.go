package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/NT912/Finwise---final-sub002/internal/core/domain"
	"github.com/NT912/Finwise---final-sub002/internal/core/port"
	"github.com/NT912/Finwise---final-sub002/internal/infra/config"
	"github.com/NT912/Finwise---final-sub002/internal/infra/logger"
)

const codeSubject = "Your FinWise verification code"

var codeBody = template.Must(template.New("code").Parse(`Hello{{if .DisplayName}} {{.DisplayName}}{{end}},

Your FinWise verification code is {{.Code}}.
It expires at {{.ExpiresAt.Format "15:04 MST"}} and can be used once.

If you did not ask to change your password, you can ignore this message.
`))

// SMTPMailer delivers verification codes directly over SMTP.
type SMTPMailer struct {
	cfg    config.MailSettings
	from   *mail.Address
	logger *zap.Logger
	now    func() time.Time
}

// NewSMTPMailer validates the sender address and returns a mailer.
func NewSMTPMailer(cfg config.MailSettings, logger *zap.Logger) (*SMTPMailer, error) {
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("parse mail.from: %w", err)
	}
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	return &SMTPMailer{cfg: cfg, from: from, logger: logger, now: time.Now}, nil
}

// SendVerificationCode renders the code e-mail and submits it. The whole
// SMTP exchange is bounded by ctx.
func (m *SMTPMailer) SendVerificationCode(ctx context.Context, msg domain.VerificationCodeMessage) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	to, err := mail.ParseAddress(msg.Email)
	if err != nil {
		return fmt.Errorf("parse recipient: %w", err)
	}

	message, err := m.render(to, msg)
	if err != nil {
		return err
	}

	if err := m.deliver(ctx, to.Address, message); err != nil {
		return err
	}

	m.logger.Info("verification code e-mail sent",
		zap.String("account_id", msg.AccountID),
		zap.String("to", logger.MaskEmail(to.Address)),
	)
	return nil
}

func (m *SMTPMailer) render(to *mail.Address, msg domain.VerificationCodeMessage) ([]byte, error) {
	var body bytes.Buffer
	if err := codeBody.Execute(&body, msg); err != nil {
		return nil, fmt.Errorf("render code e-mail: %w", err)
	}

	var message bytes.Buffer
	for _, header := range [][2]string{
		{"From", m.from.String()},
		{"To", to.String()},
		{"Subject", mime.QEncoding.Encode("utf-8", codeSubject)},
		{"Date", m.now().Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/plain; charset=UTF-8"},
	} {
		fmt.Fprintf(&message, "%s: %s\r\n", header[0], header[1])
	}
	message.WriteString("\r\n")
	message.Write(bytes.ReplaceAll(body.Bytes(), []byte("\n"), []byte("\r\n")))

	return message.Bytes(), nil
}

func (m *SMTPMailer) deliver(ctx context.Context, to string, message []byte) error {
	addr := net.JoinHostPort(m.cfg.SMTPHost, strconv.Itoa(m.cfg.SMTPPort))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to smtp server: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	tlsConfig := &tls.Config{ServerName: m.cfg.SMTPHost, MinVersion: tls.VersionTLS12}
	if m.cfg.SMTPTLS {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, m.cfg.SMTPHost)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	defer client.Close()

	if !m.cfg.SMTPTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if m.cfg.SMTPUsername != "" {
		auth := smtp.PlainAuth("", m.cfg.SMTPUsername, m.cfg.SMTPPassword, m.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
	}

	if err := client.Mail(m.from.Address); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("open data writer: %w", err)
	}
	if _, err := w.Write(message); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data writer: %w", err)
	}

	if err := client.Quit(); err != nil {
		return fmt.Errorf("quit smtp session: %w", err)
	}
	return nil
}

var _ port.CodeMailer = (*SMTPMailer)(nil)
