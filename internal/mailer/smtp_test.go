package mailer

import (
	"context"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VNZray/capstone-project-sub008/internal/config"
)

// relay is a single-connection SMTP server that accepts everything.
type relay struct {
	ln  net.Listener
	ext []string

	mu   sync.Mutex
	cmds []string
	data string
	done chan struct{}
}

func startRelay(t *testing.T, ext ...string) *relay {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	r := &relay{ln: ln, ext: ext, done: make(chan struct{})}
	t.Cleanup(func() { _ = ln.Close() })
	go r.serve()
	return r
}

func (r *relay) config() config.SMTPConfig {
	host, port, _ := net.SplitHostPort(r.ln.Addr().String())
	return config.SMTPConfig{Host: host, Port: port, TLSMode: "none"}
}

func (r *relay) serve() {
	defer close(r.done)
	conn, err := r.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("220 relay ready")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		r.mu.Lock()
		r.cmds = append(r.cmds, line)
		r.mu.Unlock()

		verb, _, _ := strings.Cut(strings.ToUpper(line), " ")
		switch verb {
		case "EHLO":
			lines := append([]string{"relay"}, r.ext...)
			for i, l := range lines {
				sep := "-"
				if i == len(lines)-1 {
					sep = " "
				}
				_ = tp.PrintfLine("250%s%s", sep, l)
			}
		case "DATA":
			_ = tp.PrintfLine("354 go ahead")
			b, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			r.mu.Lock()
			r.data = string(b)
			r.mu.Unlock()
			_ = tp.PrintfLine("250 queued")
		case "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("250 ok")
		}
	}
}

func (r *relay) commands() []string {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.cmds...)
}

func confirmation() Email {
	return Email{
		FromName: "City Venture",
		From:     "no-reply@cityventure.ph",
		To:       []string{"juan@example.ph"},
		Subject:  "Order ORD-0001 confirmed",
		TextBody: "Arrival code: AB12",
		HTMLBody: "<p>Arrival code: <b>AB12</b></p>",
	}
}

func TestSMTPMailer_Delivers(t *testing.T) {
	r := startRelay(t)
	m, err := NewSMTPMailer(r.config())
	require.NoError(t, err)

	require.NoError(t, m.Send(context.Background(), confirmation()))

	cmds := r.commands()
	assert.Contains(t, cmds, "MAIL FROM:<no-reply@cityventure.ph>")
	assert.Contains(t, cmds, "RCPT TO:<juan@example.ph>")
	assert.Equal(t, "QUIT", cmds[len(cmds)-1])

	r.mu.Lock()
	data := r.data
	r.mu.Unlock()
	assert.Contains(t, data, "@cityventure.ph>\n", "message id uses the sender domain")
	assert.Contains(t, data, "Subject: Order ORD-0001 confirmed")
	assert.Contains(t, data, "AB12")
}

func TestSMTPMailer_StartTLSRequired(t *testing.T) {
	r := startRelay(t)
	cfg := r.config()
	cfg.TLSMode = "starttls"
	m, err := NewSMTPMailer(cfg)
	require.NoError(t, err)

	err = m.Send(context.Background(), confirmation())
	assert.ErrorIs(t, err, ErrStartTLSUnsupported)
	assert.NotContains(t, strings.Join(r.commands(), "\n"), "MAIL FROM")
}

func TestSMTPMailer_CredentialsNeedAuth(t *testing.T) {
	r := startRelay(t)
	cfg := r.config()
	cfg.User, cfg.Pass = "relay-user", "relay-pass"
	m, err := NewSMTPMailer(cfg)
	require.NoError(t, err)

	err = m.Send(context.Background(), confirmation())
	assert.ErrorIs(t, err, ErrAuthUnsupported)
	assert.NotContains(t, strings.Join(r.commands(), "\n"), "MAIL FROM")
}

func TestSMTPMailer_RejectsBadConfigAndMessages(t *testing.T) {
	_, err := NewSMTPMailer(config.SMTPConfig{Host: "localhost", Port: "1025", TLSMode: "ssl"})
	assert.Error(t, err)
	_, err = NewSMTPMailer(config.SMTPConfig{Port: "1025"})
	assert.Error(t, err)

	m, err := NewSMTPMailer(config.SMTPConfig{Host: "localhost", Port: "1025"})
	require.NoError(t, err)
	e := confirmation()
	e.To = nil
	assert.Error(t, m.Send(context.Background(), e), "rejected before dialing")
}

func TestSenderDomain(t *testing.T) {
	assert.Equal(t, "cityventure.ph", Email{From: "no-reply@cityventure.ph"}.senderDomain())
	assert.Equal(t, "", Email{From: "no-reply"}.senderDomain())
	assert.Equal(t, "", Email{From: "no-reply@"}.senderDomain())
}
