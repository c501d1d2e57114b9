package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JSONB is a custom type for JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("incompatible type for JSONB")
	}

	if len(bytes) == 0 || string(bytes) == "null" {
		*j = make(JSONB)
		return nil
	}

	result := make(JSONB)
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}
	*j = result
	return nil
}

// Program status values
const (
	ProgramStatusActive   = "active"
	ProgramStatusInactive = "inactive"
)

// Payout frequency values
const (
	PayoutFrequencyWeekly  = "weekly"
	PayoutFrequencyMonthly = "monthly"
)

// Offer visibility values
const (
	OfferVisibilityPublic     = "public"
	OfferVisibilityInviteOnly = "invite-only"
	OfferVisibilityPrivate    = "private"
)

// Creative type values
const (
	CreativeTypeImage    = "image"
	CreativeTypeVideo    = "video"
	CreativeTypeDocument = "document"
)

// Affiliate status values
const (
	AffiliateStatusPending  = "pending"
	AffiliateStatusApproved = "approved"
	AffiliateStatusRejected = "rejected"
)

// Earnings event type values
const (
	EventTypeClick      = "click"
	EventTypeConversion = "conversion"
	EventTypePayout     = "payout"
)

// Payout batch status values
const (
	BatchStatusCompleted = "completed"
	BatchStatusPartial   = "partial"
)

// Program is the commission configuration for a company. One per company.
type Program struct {
	ID              uuid.UUID `db:"id" json:"id"`
	CompanyID       string    `db:"company_id" json:"company_id"`
	DefaultRate     float64   `db:"default_rate" json:"default_rate"`
	PayoutFrequency string    `db:"payout_frequency" json:"payout_frequency"`
	CookieWindow    int       `db:"cookie_window" json:"cookie_window"`
	Status          string    `db:"status" json:"status"`

	OfferCount     int `db:"offer_count" json:"offer_count"`
	AffiliateCount int `db:"affiliate_count" json:"affiliate_count"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Offer is a promotable campaign under a program
type Offer struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	ProgramID    uuid.UUID  `db:"program_id" json:"program_id"`
	ExperienceID *string    `db:"experience_id" json:"experience_id,omitempty"`
	Name         string     `db:"name" json:"name"`
	Description  string     `db:"description" json:"description"`
	Terms        *string    `db:"terms" json:"terms,omitempty"`
	Visibility   string     `db:"visibility" json:"visibility"`
	StartAt      *time.Time `db:"start_at" json:"start_at,omitempty"`
	EndAt        *time.Time `db:"end_at" json:"end_at,omitempty"`
	RateOverride *float64   `db:"rate_override" json:"rate_override,omitempty"`
	IsPublished  bool       `db:"is_published" json:"is_published"`

	CreativeCount int `db:"creative_count" json:"creative_count"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Creative is an uploaded promotional asset attached to an offer
type Creative struct {
	ID       uuid.UUID `db:"id" json:"id"`
	OfferID  uuid.UUID `db:"offer_id" json:"offer_id"`
	Type     string    `db:"type" json:"type"`
	URL      string    `db:"url" json:"url"`
	Title    string    `db:"title" json:"title"`
	Notes    *string   `db:"notes" json:"notes,omitempty"`
	Metadata JSONB     `db:"metadata" json:"metadata,omitempty"`

	OfferName string `db:"offer_name" json:"offer_name,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Affiliate is a user's enrollment record in a program
type Affiliate struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	ProgramID  uuid.UUID  `db:"program_id" json:"program_id"`
	UserID     string     `db:"user_id" json:"user_id"`
	Status     string     `db:"status" json:"status"`
	CustomRate *float64   `db:"custom_rate" json:"custom_rate,omitempty"`
	Tier       string     `db:"tier" json:"tier"`
	RateExpiry *time.Time `db:"rate_expiry" json:"rate_expiry,omitempty"`

	AppliedAt  time.Time  `db:"applied_at" json:"applied_at"`
	ApprovedAt *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	RejectedAt *time.Time `db:"rejected_at" json:"rejected_at,omitempty"`

	EventCount int `db:"event_count" json:"event_count"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// EarningsEvent is one immutable ledger entry for an affiliate.
// Amount is meaningful only for conversion and payout events.
// SettledAt is set on conversion events covered by a payout run.
type EarningsEvent struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	AffiliateID uuid.UUID  `db:"affiliate_id" json:"affiliate_id"`
	Type        string     `db:"type" json:"type"`
	Amount      float64    `db:"amount" json:"amount"`
	Currency    string     `db:"currency" json:"currency"`
	SourceRef   *string    `db:"source_ref" json:"source_ref,omitempty"`
	SettledAt   *time.Time `db:"settled_at" json:"settled_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PayoutBatch summarizes one settlement run. Immutable once created.
type PayoutBatch struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ProgramID   uuid.UUID `db:"program_id" json:"program_id"`
	Total       float64   `db:"total" json:"total"`
	Count       int       `db:"count" json:"count"`
	Status      string    `db:"status" json:"status"`
	Metadata    JSONB     `db:"metadata" json:"metadata"`
	ProcessedAt time.Time `db:"processed_at" json:"processed_at"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EarningsTypeSummary is a per-event-type aggregate for one affiliate
type EarningsTypeSummary struct {
	Type   string  `db:"type" json:"type"`
	Count  int     `db:"count" json:"count"`
	Amount float64 `db:"amount" json:"amount"`
}
