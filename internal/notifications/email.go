package notifications

import (
	"affiliate-server/internal/observability"
	"context"
	"fmt"

	"github.com/resendlabs/resend-go"
)

// ResendEmailer sends transactional email through Resend with a fixed sender
type ResendEmailer struct {
	client *resend.Client
	from   string
	logger *observability.Logger
}

func NewResendEmailer(apiKey, from string, logger *observability.Logger) (*ResendEmailer, error) {
	client := resend.NewClient(apiKey)
	if client == nil {
		return nil, fmt.Errorf("failed to create Resend client")
	}

	return &ResendEmailer{
		client: client,
		from:   from,
		logger: logger,
	}, nil
}

func (e *ResendEmailer) SendEmail(ctx context.Context, to, subject, htmlContent string) error {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "email_to", Value: to},
		observability.Field{Key: "email_subject", Value: subject},
	)

	params := &resend.SendEmailRequest{
		From:    e.from,
		To:      []string{to},
		Subject: subject,
		Html:    htmlContent,
	}

	if _, err := e.client.Emails.Send(params); err != nil {
		e.logger.Error(ctx, "failed to send email", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	e.logger.Info(ctx, "email sent successfully")
	return nil
}
