package platform

import (
	"affiliate-server/internal/observability"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// ErrRequestFailed wraps any failed call to the platform API
var ErrRequestFailed = errors.New("platform request failed")

// AccessLevel is the permission level the platform reports for a user
type AccessLevel string

const (
	AccessLevelNone     AccessLevel = "no_access"
	AccessLevelCustomer AccessLevel = "customer"
	AccessLevelAdmin    AccessLevel = "admin"
)

// AccessResult is the outcome of a platform access check
type AccessResult struct {
	HasAccess   bool        `json:"has_access"`
	AccessLevel AccessLevel `json:"access_level"`
}

// LedgerAccount identifies a company's payment ledger on the platform
type LedgerAccount struct {
	ID          string  `json:"id"`
	TransferFee float64 `json:"transfer_fee"`
}

// User is the platform's public profile for a user
type User struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Email    *string `json:"email,omitempty"`
}

// PayUserParams describes one transfer from a company ledger to a user
type PayUserParams struct {
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	DestinationID   string  `json:"destination_id"`
	LedgerAccountID string  `json:"ledger_account_id"`
	TransferFee     float64 `json:"transfer_fee"`
}

// PushNotification is one platform push message. ExperienceID targets all
// members of an experience; UserIDs narrows delivery to specific users.
type PushNotification struct {
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	ExperienceID string   `json:"experience_id,omitempty"`
	UserIDs      []string `json:"user_ids,omitempty"`
	RestPath     string   `json:"rest_path,omitempty"`
	IsMention    bool     `json:"is_mention"`
}

// Attachment is the stored reference for an uploaded file
type Attachment struct {
	DirectUploadID string `json:"direct_upload_id"`
	URL            string `json:"url"`
}

// Client talks to the commerce platform's REST API
type Client struct {
	baseURL     string
	appID       string
	apiKey      string
	tokenSecret string
	logger      *observability.Logger
	httpClient  *http.Client
}

// NewClient creates a platform API client
func NewClient(baseURL, appID, apiKey, tokenSecret string, logger *observability.Logger) *Client {
	return &Client{
		baseURL:     baseURL,
		appID:       appID,
		apiKey:      apiKey,
		tokenSecret: tokenSecret,
		logger:      logger,
		httpClient:  &http.Client{},
	}
}

// CheckCompanyAccess asks the platform whether a user can access a company
// dashboard and at what level
func (c *Client) CheckCompanyAccess(ctx context.Context, companyID, userID string) (AccessResult, error) {
	var result AccessResult
	path := fmt.Sprintf("/companies/%s/access/%s", companyID, userID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return AccessResult{}, err
	}
	return result, nil
}

// CheckExperienceAccess asks the platform whether a user is a member of an
// experience and at what level
func (c *Client) CheckExperienceAccess(ctx context.Context, experienceID, userID string) (AccessResult, error) {
	var result AccessResult
	path := fmt.Sprintf("/experiences/%s/access/%s", experienceID, userID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return AccessResult{}, err
	}
	return result, nil
}

// GetCompanyLedgerAccount retrieves the company's ledger account used for
// outbound payments
func (c *Client) GetCompanyLedgerAccount(ctx context.Context, companyID string) (LedgerAccount, error) {
	var result struct {
		LedgerAccount *LedgerAccount `json:"ledger_account"`
	}
	path := fmt.Sprintf("/companies/%s/ledger-account", companyID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return LedgerAccount{}, err
	}
	if result.LedgerAccount == nil || result.LedgerAccount.ID == "" {
		return LedgerAccount{}, fmt.Errorf("company has no ledger account: %w", ErrRequestFailed)
	}
	return *result.LedgerAccount, nil
}

// GetUser retrieves a user's platform profile
func (c *Client) GetUser(ctx context.Context, userID string) (User, error) {
	var user User
	if err := c.doJSON(ctx, http.MethodGet, "/users/"+userID, nil, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// PayUser executes one transfer on the platform's payment rails. The call is
// irreversible once it returns success.
func (c *Client) PayUser(ctx context.Context, params PayUserParams) error {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "destination_id", Value: params.DestinationID},
		observability.Field{Key: "amount", Value: params.Amount},
		observability.Field{Key: "currency", Value: params.Currency},
	)
	if err := c.doJSON(ctx, http.MethodPost, "/payments/pay-user", params, nil); err != nil {
		return err
	}
	c.logger.Info(ctx, "platform payment executed")
	return nil
}

// SendPushNotification delivers a push message through the platform
func (c *Client) SendPushNotification(ctx context.Context, notification PushNotification) error {
	return c.doJSON(ctx, http.MethodPost, "/notifications/push", notification, nil)
}

// UploadAttachment uploads a file to the platform's attachment storage and
// returns the stored reference
func (c *Client) UploadAttachment(ctx context.Context, fileName, contentType string, data []byte) (Attachment, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return Attachment{}, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return Attachment{}, fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Attachment{}, fmt.Errorf("failed to build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/attachments", &body)
	if err != nil {
		return Attachment{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error(ctx, "failed to upload attachment", err)
		return Attachment{}, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Attachment{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Attachment{}, c.apiError(ctx, resp.StatusCode, respBody)
	}

	var attachment Attachment
	if err := json.Unmarshal(respBody, &attachment); err != nil {
		return Attachment{}, fmt.Errorf("failed to parse attachment response: %w", err)
	}
	if attachment.DirectUploadID == "" || attachment.URL == "" {
		return Attachment{}, fmt.Errorf("incomplete attachment response: %w", ErrRequestFailed)
	}
	return attachment, nil
}

// doJSON performs one JSON API call. A nil out discards the response body.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var bodyReader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error(ctx, "failed to call platform api", err)
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.apiError(ctx, resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse platform response: %w", err)
	}
	return nil
}

func (c *Client) setAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-App-ID", c.appID)
}

func (c *Client) apiError(ctx context.Context, status int, body []byte) error {
	var errorResponse struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	message := string(body)
	if err := json.Unmarshal(body, &errorResponse); err == nil {
		if errorResponse.Error != "" {
			message = errorResponse.Error
		} else if errorResponse.Message != "" {
			message = errorResponse.Message
		}
	}
	err := fmt.Errorf("%w: status %d: %s", ErrRequestFailed, status, message)
	c.logger.InfoWithError(ctx, "platform api returned an error", err)
	return err
}
