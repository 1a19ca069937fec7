package mail

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/NT912/Finwise---final-sub002/internal/core/domain"
	"github.com/NT912/Finwise---final-sub002/internal/infra/config"
)

type capturedMail struct {
	from string
	to   string
	data string
}

// fakeSMTPServer speaks just enough SMTP for net/smtp to submit one message.
type fakeSMTPServer struct {
	listener net.Listener
	mu       sync.Mutex
	mails    []capturedMail
	stall    bool
}

func startFakeSMTP(t *testing.T, stall bool) *fakeSMTPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &fakeSMTPServer{listener: ln, stall: stall}
	t.Cleanup(func() { _ = ln.Close() })
	go srv.serve()
	return srv
}

func (s *fakeSMTPServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeSMTPServer) handle(conn net.Conn) {
	defer conn.Close()
	if s.stall {
		time.Sleep(500 * time.Millisecond)
		return
	}

	r := bufio.NewReader(conn)
	reply := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }

	reply("220 fake ESMTP")
	var current capturedMail
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")
		upper := strings.ToUpper(cmd)
		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			reply("250 fake")
		case strings.HasPrefix(upper, "MAIL FROM:"):
			current.from = cmd[len("MAIL FROM:"):]
			reply("250 OK")
		case strings.HasPrefix(upper, "RCPT TO:"):
			current.to = cmd[len("RCPT TO:"):]
			reply("250 OK")
		case upper == "DATA":
			reply("354 go ahead")
			var data strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				data.WriteString(l)
			}
			current.data = data.String()
			s.mu.Lock()
			s.mails = append(s.mails, current)
			s.mu.Unlock()
			reply("250 queued")
		case upper == "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 unsupported")
		}
	}
}

func (s *fakeSMTPServer) settings(t *testing.T) config.MailSettings {
	t.Helper()
	host, portStr, err := net.SplitHostPort(s.listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return config.MailSettings{
		Driver:   config.MailDriverSMTP,
		From:     "FinWise <no-reply@finwise.app>",
		SMTPHost: host,
		SMTPPort: port,
	}
}

func TestSMTPMailerSendsCode(t *testing.T) {
	srv := startFakeSMTP(t, false)

	mailer, err := NewSMTPMailer(srv.settings(t), zaptest.NewLogger(t))
	require.NoError(t, err)

	expires := time.Date(2025, 1, 2, 15, 4, 0, 0, time.UTC)
	err = mailer.SendVerificationCode(context.Background(), domain.VerificationCodeMessage{
		AccountID:   "acc-1",
		Email:       "ana@example.com",
		DisplayName: "Ana",
		Code:        "482913",
		ExpiresAt:   expires,
	})
	require.NoError(t, err)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.mails, 1)
	got := srv.mails[0]
	require.Equal(t, "<no-reply@finwise.app>", got.from)
	require.Equal(t, "<ana@example.com>", got.to)
	require.Contains(t, got.data, "Subject: Your FinWise verification code")
	require.Contains(t, got.data, "Hello Ana,")
	require.Contains(t, got.data, "482913")
	require.Contains(t, got.data, "15:04 UTC")
}

func TestSMTPMailerHonoursDeadline(t *testing.T) {
	srv := startFakeSMTP(t, true)

	mailer, err := NewSMTPMailer(srv.settings(t), zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = mailer.SendVerificationCode(ctx, domain.VerificationCodeMessage{Email: "ana@example.com", Code: "1"})
	require.Error(t, err)
	require.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestSMTPMailerRejectsBadAddresses(t *testing.T) {
	_, err := NewSMTPMailer(config.MailSettings{From: "not an address", SMTPHost: "localhost"}, zaptest.NewLogger(t))
	require.Error(t, err)

	mailer, err := NewSMTPMailer(config.MailSettings{From: "a@b.io", SMTPHost: "localhost", SMTPPort: 25}, zaptest.NewLogger(t))
	require.NoError(t, err)
	err = mailer.SendVerificationCode(context.Background(), domain.VerificationCodeMessage{Email: "nobody"})
	require.Error(t, err)
}
