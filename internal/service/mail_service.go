package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/redtape-api/internal/models"
	"github.com/noah-isme/redtape-api/pkg/ids"
	"github.com/noah-isme/redtape-api/pkg/jobs"
	"github.com/noah-isme/redtape-api/pkg/logger"
)

// MailJobType is the queue job type that delivers outgoing mail.
const MailJobType = "mail.deliver"

const (
	mailKindVerification  = "verification"
	mailKindAdminNotice   = "admin_notification"
	mailKindPasswordReset = "password_reset"
)

// Mailer sends the application's transactional mail. Calls only enqueue work.
type Mailer interface {
	SendVerificationRequest(ctx context.Context, report models.Report) error
	SendAdminNotification(ctx context.Context, report models.Report) error
	SendPasswordReset(ctx context.Context, user models.User, token string) error
}

// Message is one outgoing email.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// MailTransport delivers a rendered message.
type MailTransport interface {
	Send(ctx context.Context, msg Message) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type adminDirectory interface {
	ListAdmins(ctx context.Context) ([]models.User, error)
}

// mailJob is the queue payload. Admin notices resolve recipients at delivery time.
type mailJob struct {
	Kind     string
	Message  Message
	ToAdmins bool
	ReportID string
}

// MailServiceConfig configures links and recipients.
type MailServiceConfig struct {
	PublicBaseURL   string
	AdminRecipients []string
}

// MailService renders messages and hands them to the job queue.
type MailService struct {
	queue     jobEnqueuer
	transport MailTransport
	admins    adminDirectory
	config    MailServiceConfig
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewMailService constructs the mailer.
func NewMailService(queue jobEnqueuer, transport MailTransport, admins adminDirectory, config MailServiceConfig, metrics *MetricsService, logger *zap.Logger) *MailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.PublicBaseURL = strings.TrimRight(config.PublicBaseURL, "/")
	return &MailService{queue: queue, transport: transport, admins: admins, config: config, metrics: metrics, logger: logger}
}

// SendVerificationRequest asks the submitter to confirm their report.
func (s *MailService) SendVerificationRequest(ctx context.Context, report models.Report) error {
	link := fmt.Sprintf("%s/verify?token=%s", s.config.PublicBaseURL, url.QueryEscape(report.VerificationToken))
	body := fmt.Sprintf(`Thanks for reporting a permitting obstacle in %s.

Please confirm your email address so we can include your report:

%s

If you did not submit a report to Red Tape, you can ignore this message.
`, report.Location, link)
	return s.enqueue(mailJob{
		Kind:     mailKindVerification,
		ReportID: report.ID,
		Message:  Message{To: []string{report.Email}, Subject: "Verify your Red Tape Report", Body: body},
	})
}

// SendAdminNotification tells admins a report is waiting for review.
func (s *MailService) SendAdminNotification(ctx context.Context, report models.Report) error {
	body := fmt.Sprintf(`A new report has been verified and is waiting for review.

Project type: %s
Location: %s
Departments: %s
Issue categories: %s

%s

Review it at %s/admin/reports/%s
`, report.ProjectType, report.Location,
		joinOrNone(report.Departments), joinOrNone(report.IssueCategories),
		report.IssueDescription, s.config.PublicBaseURL, report.ID)
	return s.enqueue(mailJob{
		Kind:     mailKindAdminNotice,
		ReportID: report.ID,
		ToAdmins: true,
		Message: Message{
			To:      append([]string(nil), s.config.AdminRecipients...),
			Subject: fmt.Sprintf("New Verified Report: %s in %s", report.ProjectType, report.Location),
			Body:    body,
		},
	})
}

// SendPasswordReset mails a reset link valid for a limited time.
func (s *MailService) SendPasswordReset(ctx context.Context, user models.User, token string) error {
	link := fmt.Sprintf("%s/passwords/%s/edit", s.config.PublicBaseURL, url.PathEscape(token))
	body := fmt.Sprintf(`Someone asked to reset the password for %s.

Choose a new password here:

%s

The link expires shortly. If you did not ask for a reset, ignore this message.
`, user.Email, link)
	return s.enqueue(mailJob{
		Kind:    mailKindPasswordReset,
		Message: Message{To: []string{user.Email}, Subject: "Reset your password", Body: body},
	})
}

// Deliver is the queue handler for MailJobType.
func (s *MailService) Deliver(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(mailJob)
	if !ok {
		return fmt.Errorf("unexpected mail payload %T", job.Payload)
	}
	msg := payload.Message
	if payload.ToAdmins && len(msg.To) == 0 {
		recipients, err := s.adminRecipients(ctx)
		if err != nil {
			return err
		}
		if len(recipients) == 0 {
			s.logger.Warn("no admin recipients configured, dropping notification", zap.String("report_id", payload.ReportID))
			return nil
		}
		msg.To = recipients
	}

	err := s.transport.Send(ctx, msg)
	s.metrics.RecordMailDelivery(payload.Kind, err)
	if err != nil {
		return fmt.Errorf("deliver %s mail: %w", payload.Kind, err)
	}
	return nil
}

func (s *MailService) adminRecipients(ctx context.Context) ([]string, error) {
	if s.admins == nil {
		return nil, nil
	}
	admins, err := s.admins.ListAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("list admin recipients: %w", err)
	}
	recipients := make([]string, 0, len(admins))
	for _, admin := range admins {
		recipients = append(recipients, admin.Email)
	}
	return recipients, nil
}

func (s *MailService) enqueue(payload mailJob) error {
	err := s.queue.Enqueue(jobs.Job{ID: ids.New(), Type: MailJobType, Payload: payload})
	if err != nil {
		fields := []zap.Field{zap.String("kind", payload.Kind), zap.Error(err)}
		for _, to := range payload.Message.To {
			fields = append(fields, logger.Email("to", to))
		}
		s.logger.Error("failed to enqueue mail", fields...)
		return fmt.Errorf("enqueue %s mail: %w", payload.Kind, err)
	}
	return nil
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}
