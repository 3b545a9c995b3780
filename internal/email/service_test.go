package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiurfinder/shiurfinder/internal/config"
)

type recordingTransport struct {
	from, to string
	msg      []byte
	err      error
}

func (r *recordingTransport) Send(_ context.Context, from, to string, msg []byte) error {
	r.from, r.to, r.msg = from, to, msg
	return r.err
}

func TestSendPasswordResetEmail(t *testing.T) {
	tr := &recordingTransport{}
	svc := NewServiceWithTransport(tr, "noreply@shiurfinder.test", "https://app.test")

	err := svc.SendPasswordResetEmail(context.Background(), "dov@example.com", "abc123")
	require.NoError(t, err)

	assert.Equal(t, "noreply@shiurfinder.test", tr.from)
	assert.Equal(t, "dov@example.com", tr.to)
	body := string(tr.msg)
	assert.Contains(t, body, "To: dov@example.com\r\n")
	assert.Contains(t, body, "Content-Type: text/html")
	assert.Contains(t, body, "https://app.test/reset-password?token=abc123")
}

func TestSendPasswordResetEmailTransportError(t *testing.T) {
	tr := &recordingTransport{err: errors.New("relay down")}
	svc := NewServiceWithTransport(tr, "noreply@shiurfinder.test", "https://app.test")

	err := svc.SendPasswordResetEmail(context.Background(), "dov@example.com", "abc123")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "relay down"))
}

func TestNewServiceWithoutTransport(t *testing.T) {
	svc := NewService(config.EmailConfig{FrontendURL: "https://app.test"})

	err := svc.SendPasswordResetEmail(context.Background(), "dov@example.com", "abc123")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewServicePrefersSendmail(t *testing.T) {
	svc := NewService(config.EmailConfig{SendmailPath: "/usr/sbin/sendmail", SMTPHost: "smtp.test", SMTPUser: "bot@test"})

	_, ok := svc.transport.(*SendmailTransport)
	assert.True(t, ok)
	assert.Equal(t, "bot@test", svc.fromEmail)
}
