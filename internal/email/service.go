package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"os/exec"

	"github.com/shiurfinder/shiurfinder/internal/config"
	"github.com/shiurfinder/shiurfinder/internal/logging"
)

var ErrNotConfigured = errors.New("email transport not configured")

// Transport delivers one already rendered message.
type Transport interface {
	Send(ctx context.Context, from, to string, msg []byte) error
}

type Service struct {
	transport   Transport
	fromEmail   string
	frontendURL string
}

// NewService picks sendmail when a binary path is configured, SMTP otherwise.
func NewService(cfg config.EmailConfig) *Service {
	var t Transport
	switch {
	case cfg.SendmailPath != "":
		t = &SendmailTransport{Path: cfg.SendmailPath}
	case cfg.SMTPHost != "":
		t = &SMTPTransport{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
		}
	}

	from := cfg.From
	if from == "" {
		from = cfg.SMTPUser
	}
	return NewServiceWithTransport(t, from, cfg.FrontendURL)
}

func NewServiceWithTransport(t Transport, from, frontendURL string) *Service {
	return &Service{
		transport:   t,
		fromEmail:   from,
		frontendURL: frontendURL,
	}
}

// SendPasswordResetEmail sends a password reset link to the user
// This method is designed to be called in a goroutine
func (s *Service) SendPasswordResetEmail(ctx context.Context, toEmail, token string) error {
	logger := logging.GetLoggerFromContext(ctx)

	if s.transport == nil {
		logger.Warn("password reset email not sent: no transport configured", "email", toEmail)
		return ErrNotConfigured
	}

	resetLink := fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, token)

	body, err := renderPasswordReset(resetLink)
	if err != nil {
		logger.Error("failed to render password reset email template", "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	msg := buildMessage(s.fromEmail, toEmail, "Reset your ShiurFinder password", body)
	if err := s.transport.Send(ctx, s.fromEmail, toEmail, msg); err != nil {
		logger.Error("failed to send password reset email", "email", toEmail, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("password reset email sent", "email", toEmail)
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	return []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		from, to, subject, body,
	))
}

// SMTPTransport sends through an SMTP relay with PLAIN auth.
type SMTPTransport struct {
	Host     string
	Port     string
	User     string
	Password string
}

func (t *SMTPTransport) Send(_ context.Context, from, to string, msg []byte) error {
	var auth smtp.Auth
	if t.User != "" {
		auth = smtp.PlainAuth("", t.User, t.Password, t.Host)
	}
	addr := fmt.Sprintf("%s:%s", t.Host, t.Port)
	return smtp.SendMail(addr, auth, from, []string{to}, msg)
}

// SendmailTransport pipes the message into a local sendmail binary.
type SendmailTransport struct {
	Path string
}

func (t *SendmailTransport) Send(ctx context.Context, from, to string, msg []byte) error {
	cmd := exec.CommandContext(ctx, t.Path, "-i", "-f", from, "--", to)
	cmd.Stdin = bytes.NewReader(msg)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("sendmail: %w: %s", err, bytes.TrimSpace(out))
	}
	return nil
}

var passwordResetTemplate = template.Must(template.New("passwordReset").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .header {
            background-color: #1E3A5F;
            color: white;
            padding: 20px;
            text-align: center;
            border-radius: 5px 5px 0 0;
        }
        .content {
            background-color: #f9f9f9;
            padding: 30px;
            border-radius: 0 0 5px 5px;
        }
        .button {
            display: inline-block;
            background-color: #1E3A5F;
            color: white !important;
            padding: 12px 30px;
            text-decoration: none;
            border-radius: 5px;
            margin: 20px 0;
        }
    </style>
</head>
<body>
    <div class="header">
        <h1>ShiurFinder</h1>
    </div>
    <div class="content">
        <h2>Reset your password</h2>
        <p>Someone asked to reset the password on your ShiurFinder account. Use the button below to choose a new one.</p>

        <a href="{{.ResetLink}}" class="button" style="color: white !important;">Reset Password</a>

        <p>Or paste this link into your browser:</p>
        <p style="word-break: break-all;">{{.ResetLink}}</p>

        <p style="margin-top: 30px;">The link expires in one hour. If you did not ask for this, ignore this email.</p>
    </div>
</body>
</html>
`))

func renderPasswordReset(resetLink string) (string, error) {
	var buf bytes.Buffer
	data := struct {
		ResetLink string
	}{
		ResetLink: resetLink,
	}

	if err := passwordResetTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	return buf.String(), nil
}
