package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiurfinder/shiurfinder/internal/logging"
	"github.com/shiurfinder/shiurfinder/internal/models"
	"github.com/shiurfinder/shiurfinder/internal/store/memory"
)

type sentMail struct {
	to, token string
}

// fakeMailer hands every reset mail to the test through a channel.
type fakeMailer struct {
	sent chan sentMail
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{sent: make(chan sentMail, 4)}
}

func (m *fakeMailer) SendPasswordResetEmail(_ context.Context, to, token string) error {
	m.sent <- sentMail{to: to, token: token}
	return nil
}

func (m *fakeMailer) wait(t *testing.T) sentMail {
	t.Helper()
	select {
	case mail := <-m.sent:
		return mail
	case <-time.After(2 * time.Second):
		t.Fatal("no reset email sent")
		return sentMail{}
	}
}

func newTestService(t *testing.T, admins ...string) (*Service, *memory.Store, *fakeMailer) {
	t.Helper()
	st := memory.New()
	tokens, err := NewJWTService([]byte("test-secret"))
	require.NoError(t, err)
	mailer := newFakeMailer()
	svc := NewService(st, tokens, mailer, logging.Discard(), time.Hour, time.Hour, admins)
	return svc, st, mailer
}

func TestSignupAndLogin(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Signup(ctx, " dov ", "Dov@Example.com", "password1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "dov", res.User.Username)
	assert.Equal(t, "dov@example.com", res.User.Email)
	assert.Equal(t, models.RoleUser, res.User.Role)

	byName, err := svc.Login(ctx, "dov", "password1")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, byName.User.ID)

	byEmail, err := svc.Login(ctx, "DOV@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, byEmail.User.ID)

	_, err = svc.Login(ctx, "dov", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignupValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "", "a@b.c", "password1")
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.Signup(ctx, "dov", "a@b.c", "short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestSignupDuplicate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "dov", "dov@example.com", "password1")
	require.NoError(t, err)

	_, err = svc.Signup(ctx, "dov", "other@example.com", "password1")
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = svc.Signup(ctx, "other", "DOV@example.com", "password1")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestSignupAdminEmail(t *testing.T) {
	svc, _, _ := newTestService(t, "Rav@Example.com")

	res, err := svc.Signup(context.Background(), "rav", "rav@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, res.User.Role)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, _, mailer := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "dov", "dov@example.com", "password1")
	require.NoError(t, err)

	require.NoError(t, svc.RequestPasswordReset(ctx, "dov@example.com"))
	mail := mailer.wait(t)
	assert.Equal(t, "dov@example.com", mail.to)

	require.NoError(t, svc.ResetPassword(ctx, mail.token, "new-password"))

	_, err = svc.Login(ctx, "dov", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "dov", "new-password")
	assert.NoError(t, err)

	// single use
	err = svc.ResetPassword(ctx, mail.token, "another-password")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestPasswordResetExpired(t *testing.T) {
	svc, _, mailer := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "dov", "dov@example.com", "password1")
	require.NoError(t, err)
	require.NoError(t, svc.RequestPasswordReset(ctx, "dov@example.com"))
	mail := mailer.wait(t)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	err = svc.ResetPassword(ctx, mail.token, "new-password")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestPasswordResetUnknownEmail(t *testing.T) {
	svc, _, mailer := newTestService(t)

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "ghost@example.com"))
	select {
	case <-mailer.sent:
		t.Fatal("mail sent for unknown account")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestResetPasswordValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.ResetPassword(ctx, "", "new-password"), ErrResetFieldsRequired)
	assert.ErrorIs(t, svc.ResetPassword(ctx, "tok", ""), ErrResetFieldsRequired)
	assert.ErrorIs(t, svc.ResetPassword(ctx, "tok", "short"), ErrPasswordTooShort)
	assert.ErrorIs(t, svc.ResetPassword(ctx, "tok", "long-enough"), ErrInvalidResetToken)
}

func TestPromote(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Signup(ctx, "dov", "dov@example.com", "password1")
	require.NoError(t, err)

	u, err := svc.Promote(ctx, "dov@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)

	stored, err := st.GetUser(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, stored.Role)

	_, err = svc.Promote(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
