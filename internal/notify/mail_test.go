package notify

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/aelpxy/dockup/internal/report"
	"github.com/aelpxy/dockup/pkg/models"
)

func newTestMailer(user string) *Mailer {
	return NewMailer(models.EmailConfig{
		Host:        "smtp.example.com",
		Port:        587,
		User:        user,
		Password:    "secret",
		NotifyEmail: "ops@example.com",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBuildMessage(t *testing.T) {
	c := qt.New(t)

	msg, err := newTestMailer("dockup@example.com").buildMessage(report.Message{
		Subject: "[dockup] ALL_OK on host: 1/1 applications backed up",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	})
	c.Assert(err, qt.IsNil)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	c.Assert(err, qt.IsNil)

	out := buf.String()
	c.Assert(out, qt.Contains, "From: <dockup@example.com>")
	c.Assert(out, qt.Contains, "To: <ops@example.com>")
	c.Assert(out, qt.Contains, "Subject: [dockup] ALL_OK on host: 1/1 applications backed up")
	c.Assert(out, qt.Contains, "multipart/alternative")
	c.Assert(out, qt.Contains, "plain body")
	c.Assert(out, qt.Contains, "<p>html body</p>")
}

func TestSenderFallsBackToRecipient(t *testing.T) {
	c := qt.New(t)

	c.Assert(newTestMailer("dockup@example.com").sender(), qt.Equals, "dockup@example.com")
	c.Assert(newTestMailer("apikey").sender(), qt.Equals, "ops@example.com")
}

func TestBuildMessageRejectsBadRecipient(t *testing.T) {
	c := qt.New(t)
	m := newTestMailer("dockup@example.com")
	m.cfg.NotifyEmail = "not an address"

	_, err := m.buildMessage(report.Message{Subject: "s", Text: "t"})
	c.Assert(err, qt.ErrorMatches, `invalid recipient address: .*`)
}
