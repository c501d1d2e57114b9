package platform

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrStaleTimestamp   = errors.New("webhook timestamp outside tolerance")
)

// Maximum clock skew accepted between the platform's signature timestamp and
// our own clock.
const signatureTolerance = 5 * time.Minute

// WebhookEvent is one event delivered by the platform
type WebhookEvent struct {
	Action string           `json:"action"`
	Data   WebhookEventData `json:"data"`
}

// WebhookEventData is the payload of a payment event
type WebhookEventData struct {
	ID              string            `json:"id"`
	UserID          *string           `json:"user_id"`
	FinalAmount     float64           `json:"final_amount"`
	AmountAfterFees *float64          `json:"amount_after_fees"`
	Currency        string            `json:"currency"`
	Metadata        map[string]string `json:"metadata"`
}

// ValidateWebhookSignature checks a platform webhook signature header of the
// form "t=<unix>,v1=<hex hmac-sha256>" against the raw request payload.
// The signed message is "<timestamp>.<payload>".
func ValidateWebhookSignature(secret string, payload []byte, signatureHeader string) error {
	timestamp, signature, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return err
	}

	skew := time.Since(time.Unix(timestamp, 0))
	if skew < -signatureTolerance || skew > signatureTolerance {
		return ErrStaleTimestamp
	}

	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// ParseWebhookEvent decodes a validated webhook payload
func ParseWebhookEvent(payload []byte) (WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return WebhookEvent{}, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	return event, nil
}

func parseSignatureHeader(header string) (timestamp int64, signature string, err error) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp, err = strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, "", ErrInvalidSignature
			}
		case "v1":
			signature = value
		}
	}
	if timestamp == 0 || signature == "" {
		return 0, "", ErrInvalidSignature
	}
	return timestamp, signature, nil
}
