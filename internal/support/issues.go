package support

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/birdtrack/support-platform/internal/identity"
	"github.com/birdtrack/support-platform/internal/model"
	"github.com/birdtrack/support-platform/pkg/logger"
	"github.com/birdtrack/support-platform/pkg/metrics"
)

// submittedAtLayout is the human timestamp shown in responses and the
// acknowledgment mail.
const submittedAtLayout = "Jan 2, 2006 at 15:04"

// Issues records one-shot problem reports. Both outbound mails (support
// mailbox and reporter acknowledgment) must succeed for a submission to
// succeed; the webhook is best effort and its failure is swallowed.
type Issues struct {
	store        Store
	bus          Bus
	mailer       Mailer
	webhook      Webhook
	supportEmail string
	casePrefix   string
	logger       *logger.Logger
	now          func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewIssues creates the issue recorder. casePrefix is the uppercase
// prefix of generated case numbers, e.g. "BT".
func NewIssues(store Store, bus Bus, mailer Mailer, webhook Webhook, supportEmail, casePrefix string, log *logger.Logger) *Issues {
	return &Issues{
		store:        store,
		bus:          bus,
		mailer:       mailer,
		webhook:      webhook,
		supportEmail: supportEmail,
		casePrefix:   casePrefix,
		logger:       log,
		now:          time.Now,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Submit validates, persists, and notifies one issue report. Validation
// failures happen before any collaborator call.
func (s *Issues) Submit(ctx context.Context, session identity.Session, description string) (*model.SubmitIssueResponse, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrEmptyDescription
	}
	if session.Email == "" {
		return nil, ErrNotAuthenticated
	}

	now := s.now()
	s.mu.Lock()
	number := caseNumber(s.casePrefix, now, s.rnd)
	s.mu.Unlock()

	issue := &model.Issue{
		ID:            uuid.Must(uuid.NewV7()).String(),
		CaseNumber:    number,
		ReporterID:    session.ActorID(),
		ReporterEmail: session.Email,
		Description:   description,
		Status:        model.IssueOpen,
		CreatedAt:     now,
	}
	if err := s.store.CreateIssue(ctx, issue); err != nil {
		return nil, fmt.Errorf("failed to record issue: %w", err)
	}
	if err := s.bus.PublishIssueCreated(ctx, issue); err != nil {
		s.logger.Warn("issue event publish failed",
			zap.String("case_number", number),
			zap.Error(err),
		)
	}
	metrics.IssuesTotal.Inc()

	submittedAt := now.Format(submittedAtLayout)

	if _, err := s.mailer.Send(ctx, Mail{
		To:      s.supportEmail,
		Subject: fmt.Sprintf("[%s] New issue report", number),
		Text: fmt.Sprintf("Case %s reported by %s (%s) on %s:\n\n%s",
			number, session.ActorID(), session.Email, submittedAt, description),
	}); err != nil {
		metrics.MailSendsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("failed to notify support mailbox: %w", err)
	}
	metrics.MailSendsTotal.WithLabelValues("success").Inc()

	if _, err := s.mailer.Send(ctx, Mail{
		To:      session.Email,
		Subject: fmt.Sprintf("We received your report (%s)", number),
		Text: fmt.Sprintf("Thanks for your report. Your case number is %s, filed %s. We'll follow up by email.",
			number, submittedAt),
	}); err != nil {
		metrics.MailSendsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("failed to send acknowledgment: %w", err)
	}
	metrics.MailSendsTotal.WithLabelValues("success").Inc()

	delivered := s.relayWebhook(ctx, issue, submittedAt)

	s.logger.Info("issue submitted",
		zap.String("case_number", number),
		zap.String("reporter_id", issue.ReporterID),
		zap.Bool("webhook_delivered", delivered),
	)
	return &model.SubmitIssueResponse{
		CaseNumber:       number,
		SubmittedAt:      submittedAt,
		WebhookDelivered: delivered,
	}, nil
}

// relayWebhook is best effort: any failure is logged and swallowed.
func (s *Issues) relayWebhook(ctx context.Context, issue *model.Issue, submittedAt string) bool {
	status, err := s.webhook.Post(ctx, map[string]string{
		"case_number":  issue.CaseNumber,
		"reporter":     issue.ReporterID,
		"description":  issue.Description,
		"submitted_at": submittedAt,
	})
	if err != nil || status >= 300 {
		metrics.WebhookDeliveriesTotal.WithLabelValues("failure").Inc()
		s.logger.Warn("issue webhook failed",
			zap.String("case_number", issue.CaseNumber),
			zap.Int("status", status),
			zap.Error(err),
		)
		return false
	}
	metrics.WebhookDeliveriesTotal.WithLabelValues("success").Inc()
	return true
}
