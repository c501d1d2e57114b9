package handler

import (
	"context"
	"net/http"
	"time"

	"affiliate-server/internal/apierrors"
	authHandler "affiliate-server/internal/auth/handler"
	"affiliate-server/internal/observability"
	"affiliate-server/internal/offer/processor"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AccessGuard gates offer administration to company admins
type AccessGuard interface {
	RequireCompanyAdmin(ctx context.Context, companyID, userID string) error
}

type Handler struct {
	processor processor.OfferProcessor
	access    AccessGuard
	logger    *observability.Logger
}

func New(processor processor.OfferProcessor, access AccessGuard, logger *observability.Logger) Handler {
	return Handler{
		processor: processor,
		access:    access,
		logger:    logger,
	}
}

// CreateOfferRequest represents a new offer in an HTTP request
type CreateOfferRequest struct {
	CompanyID    string     `json:"companyId" binding:"required"`
	ProgramID    uuid.UUID  `json:"programId" binding:"required"`
	ExperienceID *string    `json:"experienceId,omitempty"`
	Name         string     `json:"name" binding:"required,min=1"`
	Description  string     `json:"description" binding:"required,min=1"`
	Terms        *string    `json:"terms,omitempty"`
	Visibility   *string    `json:"visibility,omitempty" binding:"omitempty,oneof=public invite_only private"`
	StartAt      *time.Time `json:"startAt,omitempty"`
	EndAt        *time.Time `json:"endAt,omitempty"`
	RateOverride *float64   `json:"rateOverride,omitempty" binding:"omitempty,gte=0,lte=100"`
}

// UpdateOfferRequest represents a partial offer update in an HTTP request
type UpdateOfferRequest struct {
	CompanyID    string     `json:"companyId" binding:"required"`
	Name         *string    `json:"name,omitempty" binding:"omitempty,min=1"`
	Description  *string    `json:"description,omitempty" binding:"omitempty,min=1"`
	Terms        *string    `json:"terms,omitempty"`
	Visibility   *string    `json:"visibility,omitempty" binding:"omitempty,oneof=public invite_only private"`
	StartAt      *time.Time `json:"startAt,omitempty"`
	EndAt        *time.Time `json:"endAt,omitempty"`
	RateOverride *float64   `json:"rateOverride,omitempty" binding:"omitempty,gte=0,lte=100"`
	IsPublished  *bool      `json:"isPublished,omitempty"`
	ExperienceID *string    `json:"experienceId,omitempty"`
}

// requireAdmin runs the company admin gate, writing the error response on
// failure.
func (h *Handler) requireAdmin(c *gin.Context, ctx context.Context, companyID, userID string) bool {
	if companyID == "" {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "companyId is required"))
		return false
	}
	if err := h.access.RequireCompanyAdmin(ctx, companyID, userID); err != nil {
		apierrors.RespondWithError(c, err)
		return false
	}
	return true
}

func offerIDParam(c *gin.Context) (uuid.UUID, bool) {
	offerID, err := uuid.Parse(c.Param("offerID"))
	if err != nil {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "Invalid offer id"))
		return uuid.Nil, false
	}
	return offerID, true
}

// HandleCreateOffer creates an unpublished offer under the company's program
func (h *Handler) HandleCreateOffer(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := authHandler.RequireUserID(c)
	if !ok {
		return
	}

	var req CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "company_id", Value: req.CompanyID},
		observability.Field{Key: "program_id", Value: req.ProgramID.String()},
	)

	if !h.requireAdmin(c, ctx, req.CompanyID, userID) {
		return
	}

	offer, err := h.processor.CreateOffer(ctx, req.CompanyID, processor.CreateOfferParams{
		ProgramID:    req.ProgramID,
		ExperienceID: req.ExperienceID,
		Name:         req.Name,
		Description:  req.Description,
		Terms:        req.Terms,
		Visibility:   req.Visibility,
		StartAt:      req.StartAt,
		EndAt:        req.EndAt,
		RateOverride: req.RateOverride,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, offer)
}

// HandleListOffers lists the program's offers, newest first
func (h *Handler) HandleListOffers(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := authHandler.RequireUserID(c)
	if !ok {
		return
	}

	programID, err := uuid.Parse(c.Query("programId"))
	if err != nil {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "Invalid program id"))
		return
	}
	companyID := c.Query("companyId")

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "company_id", Value: companyID},
		observability.Field{Key: "program_id", Value: programID.String()},
	)

	if !h.requireAdmin(c, ctx, companyID, userID) {
		return
	}

	var visibility *string
	if value := c.Query("visibility"); value != "" {
		visibility = &value
	}

	offers, err := h.processor.ListOffers(ctx, companyID, programID, visibility)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"offers": offers})
}

// HandleGetOffer returns one offer after the tenant-chain check
func (h *Handler) HandleGetOffer(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := authHandler.RequireUserID(c)
	if !ok {
		return
	}

	offerID, ok := offerIDParam(c)
	if !ok {
		return
	}
	companyID := c.Query("companyId")

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "company_id", Value: companyID},
		observability.Field{Key: "offer_id", Value: offerID.String()},
	)

	if !h.requireAdmin(c, ctx, companyID, userID) {
		return
	}

	offer, err := h.processor.GetOffer(ctx, companyID, offerID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, offer)
}

// HandleUpdateOffer applies a partial update to an offer
func (h *Handler) HandleUpdateOffer(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := authHandler.RequireUserID(c)
	if !ok {
		return
	}

	offerID, ok := offerIDParam(c)
	if !ok {
		return
	}

	var req UpdateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "company_id", Value: req.CompanyID},
		observability.Field{Key: "offer_id", Value: offerID.String()},
	)

	if !h.requireAdmin(c, ctx, req.CompanyID, userID) {
		return
	}

	offer, err := h.processor.UpdateOffer(ctx, req.CompanyID, offerID, processor.UpdateOfferParams{
		Name:         req.Name,
		Description:  req.Description,
		Terms:        req.Terms,
		Visibility:   req.Visibility,
		StartAt:      req.StartAt,
		EndAt:        req.EndAt,
		RateOverride: req.RateOverride,
		IsPublished:  req.IsPublished,
		ExperienceID: req.ExperienceID,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, offer)
}

// HandleDeleteOffer hard-deletes an offer and its creatives
func (h *Handler) HandleDeleteOffer(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := authHandler.RequireUserID(c)
	if !ok {
		return
	}

	offerID, ok := offerIDParam(c)
	if !ok {
		return
	}
	companyID := c.Query("companyId")

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "company_id", Value: companyID},
		observability.Field{Key: "offer_id", Value: offerID.String()},
	)

	if !h.requireAdmin(c, ctx, companyID, userID) {
		return
	}

	if err := h.processor.DeleteOffer(ctx, companyID, offerID); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
