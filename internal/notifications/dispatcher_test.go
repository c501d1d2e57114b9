package notifications

import (
	"affiliate-server/internal/clients/platform"
	"affiliate-server/internal/observability"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakePushClient struct {
	mu        sync.Mutex
	pushes    []platform.PushNotification
	pushErr   error
	user      platform.User
	userErr   error
	userCalls int
}

func (f *fakePushClient) SendPushNotification(ctx context.Context, notification platform.PushNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, notification)
	return f.pushErr
}

func (f *fakePushClient) GetUser(ctx context.Context, userID string) (platform.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls++
	return f.user, f.userErr
}

func (f *fakePushClient) pushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushes)
}

type fakeEmailSender struct {
	mu     sync.Mutex
	emails []string
	err    error
}

func (f *fakeEmailSender) SendEmail(ctx context.Context, to, subject, htmlContent string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = append(f.emails, to)
	return f.err
}

func (f *fakeEmailSender) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.emails...)
}

func testLogger(t *testing.T) *observability.Logger {
	t.Helper()
	return observability.NewLogger()
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDispatcherDeliversPush(t *testing.T) {
	pushClient := &fakePushClient{}
	dispatcher := New(pushClient, nil, testLogger(t), 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Start(ctx)
	defer dispatcher.Stop()

	dispatcher.Dispatch(ctx, OfferPublished("exp_1", "Summer Sale"))

	waitFor(t, func() bool { return pushClient.pushCount() == 1 })

	pushClient.mu.Lock()
	push := pushClient.pushes[0]
	pushClient.mu.Unlock()
	if push.ExperienceID != "exp_1" {
		t.Errorf("expected experience exp_1, got %q", push.ExperienceID)
	}
	if !strings.Contains(push.Content, "Summer Sale") {
		t.Errorf("expected offer name in content, got %q", push.Content)
	}
	if len(push.UserIDs) != 0 {
		t.Errorf("offer announcements should broadcast, got targets %v", push.UserIDs)
	}
}

func TestDispatcherPayoutSendsReceiptEmail(t *testing.T) {
	email := "affiliate@example.com"
	pushClient := &fakePushClient{
		user: platform.User{ID: "user_1", Username: "jordan", Email: &email},
	}
	emailer := &fakeEmailSender{}
	dispatcher := New(pushClient, emailer, testLogger(t), 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Start(ctx)
	defer dispatcher.Stop()

	dispatcher.Dispatch(ctx, PayoutIssued("exp_1", "user_1", 42.5, "usd"))

	waitFor(t, func() bool { return len(emailer.sentTo()) == 1 })
	if emailer.sentTo()[0] != email {
		t.Errorf("expected receipt to %q, got %q", email, emailer.sentTo()[0])
	}
}

func TestDispatcherPayoutSkipsEmailWithoutAddress(t *testing.T) {
	pushClient := &fakePushClient{
		user: platform.User{ID: "user_1", Username: "jordan"},
	}
	emailer := &fakeEmailSender{}
	dispatcher := New(pushClient, emailer, testLogger(t), 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Start(ctx)
	defer dispatcher.Stop()

	dispatcher.Dispatch(ctx, PayoutIssued("exp_1", "user_1", 10, "usd"))

	waitFor(t, func() bool { return pushClient.pushCount() == 1 })
	time.Sleep(20 * time.Millisecond)
	if len(emailer.sentTo()) != 0 {
		t.Errorf("expected no receipt email, got %v", emailer.sentTo())
	}
}

func TestDispatcherSwallowsDeliveryErrors(t *testing.T) {
	pushClient := &fakePushClient{
		pushErr: errors.New("push unavailable"),
		userErr: errors.New("lookup unavailable"),
	}
	dispatcher := New(pushClient, &fakeEmailSender{}, testLogger(t), 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Start(ctx)
	defer dispatcher.Stop()

	dispatcher.Dispatch(ctx, PayoutIssued("exp_1", "user_1", 10, "usd"))
	dispatcher.Dispatch(ctx, OfferPublished("exp_1", "Offer"))

	waitFor(t, func() bool { return pushClient.pushCount() == 2 })
}

func TestDispatchDropsWhenQueueFull(t *testing.T) {
	// Dispatcher is never started, so the queue never drains.
	dispatcher := New(&fakePushClient{}, nil, testLogger(t), 2)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		dispatcher.Dispatch(ctx, OfferPublished("exp_1", "Offer"))
	}

	if got := len(dispatcher.queue); got != 2 {
		t.Errorf("expected queue capped at 2, got %d", got)
	}
}
