package notifications

import (
	"affiliate-server/internal/clients/platform"
	"affiliate-server/internal/observability"
	"context"
	"fmt"
)

// PushClient is the slice of the platform API the dispatcher needs
type PushClient interface {
	SendPushNotification(ctx context.Context, notification platform.PushNotification) error
	GetUser(ctx context.Context, userID string) (platform.User, error)
}

// EmailSender delivers one HTML email
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlContent string) error
}

// Notification is one queued best-effort message. Notifications are not part
// of the financial record: they may be dropped and their failures are never
// surfaced to the operation that triggered them.
type Notification struct {
	Kind string
	Push platform.PushNotification

	// Set on payout notifications; used to email a receipt when the
	// recipient has an email on their platform profile.
	ReceiptUserID   string
	ReceiptAmount   float64
	ReceiptCurrency string
}

// Notification kinds
const (
	KindOfferPublished    = "offer_published"
	KindCreativeUploaded  = "creative_uploaded"
	KindApplicationStatus = "application_status"
	KindPayoutIssued      = "payout_issued"
)

// Dispatcher delivers notifications from a bounded queue on a background
// goroutine, decoupled from the request that enqueued them.
type Dispatcher struct {
	pushClient PushClient
	emailer    EmailSender
	logger     *observability.Logger
	queue      chan Notification
	stopChan   chan struct{}
}

// New creates a Dispatcher with the given queue capacity
func New(pushClient PushClient, emailer EmailSender, logger *observability.Logger, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		pushClient: pushClient,
		emailer:    emailer,
		logger:     logger,
		queue:      make(chan Notification, queueSize),
		stopChan:   make(chan struct{}),
	}
}

// Start runs the delivery loop until Stop is called or the context ends
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info(ctx, "Starting notification dispatcher")
	for {
		select {
		case notification := <-d.queue:
			d.send(ctx, notification)
		case <-d.stopChan:
			d.logger.Info(ctx, "Stopping notification dispatcher")
			return
		case <-ctx.Done():
			d.logger.Info(ctx, "Context cancelled, stopping notification dispatcher")
			return
		}
	}
}

// Stop stops the delivery loop
func (d *Dispatcher) Stop() {
	close(d.stopChan)
}

// Dispatch enqueues a notification without blocking. A full queue drops the
// notification with a warning.
func (d *Dispatcher) Dispatch(ctx context.Context, notification Notification) {
	select {
	case d.queue <- notification:
	default:
		d.logger.Warn(observability.WithFields(ctx,
			observability.Field{Key: "notification_kind", Value: notification.Kind},
		), "notification queue full, dropping notification")
	}
}

func (d *Dispatcher) send(ctx context.Context, notification Notification) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "notification_kind", Value: notification.Kind},
	)

	if err := d.pushClient.SendPushNotification(ctx, notification.Push); err != nil {
		d.logger.InfoWithError(ctx, "failed to send push notification", err)
	}

	if notification.Kind == KindPayoutIssued && notification.ReceiptUserID != "" {
		d.sendPayoutReceipt(ctx, notification)
	}
}

// sendPayoutReceipt emails a payout receipt when the platform profile has an
// email address. Failures are logged and swallowed like every other
// notification failure.
func (d *Dispatcher) sendPayoutReceipt(ctx context.Context, notification Notification) {
	if d.emailer == nil {
		return
	}

	user, err := d.pushClient.GetUser(ctx, notification.ReceiptUserID)
	if err != nil {
		d.logger.InfoWithError(ctx, "failed to look up payout recipient, skipping receipt email", err)
		return
	}
	if user.Email == nil || *user.Email == "" {
		return
	}

	subject := "Your affiliate payout receipt"
	html := payoutReceiptHTML(user.Username, notification.ReceiptAmount, notification.ReceiptCurrency)
	if err := d.emailer.SendEmail(ctx, *user.Email, subject, html); err != nil {
		d.logger.InfoWithError(ctx, "failed to send payout receipt email", err)
	}
}

func payoutReceiptHTML(username string, amount float64, currency string) string {
	return fmt.Sprintf(`
	<html>
		<body>
			<h1>Payout processed</h1>
			<p>Hi %s,</p>
			<p>Your commission payout of %s has been sent to your platform balance.</p>
			<p>Thank you for promoting with us.</p>
		</body>
	</html>
	`, username, FormatAmount(amount, currency))
}
