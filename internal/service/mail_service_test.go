package service

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/redtape-api/internal/models"
	"github.com/noah-isme/redtape-api/pkg/jobs"
)

type enqueuerStub struct {
	jobs []jobs.Job
	err  error
}

func (s *enqueuerStub) Enqueue(job jobs.Job) error {
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

type transportStub struct {
	sent []Message
	err  error
}

func (s *transportStub) Send(ctx context.Context, msg Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type adminDirectoryStub struct {
	admins []models.User
	calls  int
}

func (s *adminDirectoryStub) ListAdmins(ctx context.Context) ([]models.User, error) {
	s.calls++
	return s.admins, nil
}

func mailReport() models.Report {
	return models.Report{
		ID:                "r1",
		Email:             "resident@example.com",
		ProjectType:       "New construction",
		Location:          "Echo Park",
		IssueDescription:  "Inspection was rescheduled four times.",
		VerificationToken: "abc_-123",
		Departments:       []string{"Building & Safety"},
	}
}

func deliverAll(t *testing.T, svc *MailService, queue *enqueuerStub) {
	t.Helper()
	for _, job := range queue.jobs {
		require.NoError(t, svc.Deliver(context.Background(), job))
	}
}

func TestMailServiceVerificationRequest(t *testing.T) {
	queue := &enqueuerStub{}
	transport := &transportStub{}
	svc := NewMailService(queue, transport, nil, MailServiceConfig{PublicBaseURL: "https://redtape.la/"}, nil, nil)

	require.NoError(t, svc.SendVerificationRequest(context.Background(), mailReport()))
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, MailJobType, queue.jobs[0].Type)
	assert.Empty(t, transport.sent)

	deliverAll(t, svc, queue)
	require.Len(t, transport.sent, 1)
	msg := transport.sent[0]
	assert.Equal(t, []string{"resident@example.com"}, msg.To)
	assert.Equal(t, "Verify your Red Tape Report", msg.Subject)
	assert.Contains(t, msg.Body, "https://redtape.la/verify?token=abc_-123")
}

func TestMailServiceAdminNotificationUsesConfiguredRecipients(t *testing.T) {
	queue := &enqueuerStub{}
	transport := &transportStub{}
	admins := &adminDirectoryStub{admins: []models.User{{Email: "db-admin@example.com"}}}
	svc := NewMailService(queue, transport, admins, MailServiceConfig{
		PublicBaseURL:   "https://redtape.la",
		AdminRecipients: []string{"ops@example.com"},
	}, nil, nil)

	require.NoError(t, svc.SendAdminNotification(context.Background(), mailReport()))
	deliverAll(t, svc, queue)

	require.Len(t, transport.sent, 1)
	assert.Equal(t, []string{"ops@example.com"}, transport.sent[0].To)
	assert.Equal(t, "New Verified Report: New construction in Echo Park", transport.sent[0].Subject)
	assert.Contains(t, transport.sent[0].Body, "https://redtape.la/admin/reports/r1")
	assert.Zero(t, admins.calls)
}

func TestMailServiceAdminNotificationFallsBackToAdminUsers(t *testing.T) {
	queue := &enqueuerStub{}
	transport := &transportStub{}
	admins := &adminDirectoryStub{admins: []models.User{{Email: "a@example.com"}, {Email: "b@example.com"}}}
	svc := NewMailService(queue, transport, admins, MailServiceConfig{PublicBaseURL: "https://redtape.la"}, nil, nil)

	require.NoError(t, svc.SendAdminNotification(context.Background(), mailReport()))
	deliverAll(t, svc, queue)
	require.Len(t, transport.sent, 1)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, transport.sent[0].To)

	admins.admins = nil
	transport.sent = nil
	queue.jobs = nil
	require.NoError(t, svc.SendAdminNotification(context.Background(), mailReport()))
	deliverAll(t, svc, queue)
	assert.Empty(t, transport.sent)
}

func TestMailServicePasswordReset(t *testing.T) {
	queue := &enqueuerStub{}
	transport := &transportStub{}
	svc := NewMailService(queue, transport, nil, MailServiceConfig{PublicBaseURL: "https://redtape.la"}, nil, nil)

	require.NoError(t, svc.SendPasswordReset(context.Background(), models.User{Email: "admin@example.com"}, "signed.token"))
	deliverAll(t, svc, queue)
	require.Len(t, transport.sent, 1)
	assert.Equal(t, "Reset your password", transport.sent[0].Subject)
	assert.Contains(t, transport.sent[0].Body, "https://redtape.la/passwords/signed.token/edit")
}

func TestMailServiceFailures(t *testing.T) {
	svc := NewMailService(&enqueuerStub{err: jobs.ErrQueueFull}, &transportStub{}, nil, MailServiceConfig{}, nil, nil)
	assert.ErrorIs(t, svc.SendVerificationRequest(context.Background(), mailReport()), jobs.ErrQueueFull)

	queue := &enqueuerStub{}
	failing := NewMailService(queue, &transportStub{err: errors.New("relay down")}, nil, MailServiceConfig{}, nil, nil)
	require.NoError(t, failing.SendVerificationRequest(context.Background(), mailReport()))
	assert.Error(t, failing.Deliver(context.Background(), queue.jobs[0]))
	assert.Error(t, failing.Deliver(context.Background(), jobs.Job{Type: MailJobType, Payload: "bogus"}))
}

func TestSMTPTransportRendersAndThrottles(t *testing.T) {
	transport, err := NewSMTPTransport(SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "user",
		Password: "secret",
		From:     "Red Tape Reports <noreply@redtape.la>",
	})
	require.NoError(t, err)

	var gotAddr, gotFrom string
	var gotMsg []byte
	transport.now = func() time.Time { return time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC) }
	transport.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotMsg = addr, from, msg
		return nil
	}

	require.NoError(t, transport.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "Hello", Body: "line1\nline2"}))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "noreply@redtape.la", gotFrom)
	raw := string(gotMsg)
	assert.True(t, strings.HasPrefix(raw, `From: "Red Tape Reports" <noreply@redtape.la>`))
	assert.Contains(t, raw, "Subject: Hello\r\n")
	assert.Contains(t, raw, "line1\r\nline2")

	assert.Error(t, transport.Send(context.Background(), Message{}))

	_, err = NewSMTPTransport(SMTPConfig{From: "not an address"})
	assert.Error(t, err)
}
