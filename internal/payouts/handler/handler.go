package handler

import (
	"context"
	"net/http"

	"affiliate-server/internal/apierrors"
	authHandler "affiliate-server/internal/auth/handler"
	"affiliate-server/internal/observability"
	"affiliate-server/internal/payouts/processor"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AccessGuard gates settlement runs to company admins
type AccessGuard interface {
	RequireCompanyAdmin(ctx context.Context, companyID, userID string) error
}

type Handler struct {
	processor processor.PayoutProcessor
	access    AccessGuard
	logger    *observability.Logger
}

func New(processor processor.PayoutProcessor, access AccessGuard, logger *observability.Logger) Handler {
	return Handler{
		processor: processor,
		access:    access,
		logger:    logger,
	}
}

// ProcessPayoutsRequest represents a settlement run in an HTTP request
type ProcessPayoutsRequest struct {
	CompanyID    string      `json:"companyId" binding:"required"`
	ProgramID    uuid.UUID   `json:"programId" binding:"required"`
	ExperienceID *string     `json:"experienceId,omitempty"`
	AffiliateIDs []uuid.UUID `json:"affiliateIds" binding:"required,min=1"`
	Currency     string      `json:"currency,omitempty" binding:"omitempty,len=3"`
}

// HandleProcessPayouts runs one settlement batch over the named affiliates
func (h *Handler) HandleProcessPayouts(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := authHandler.RequireUserID(c)
	if !ok {
		return
	}

	var req ProcessPayoutsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "company_id", Value: req.CompanyID},
		observability.Field{Key: "program_id", Value: req.ProgramID.String()},
		observability.Field{Key: "affiliate_count", Value: len(req.AffiliateIDs)},
	)

	if err := h.access.RequireCompanyAdmin(ctx, req.CompanyID, userID); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	outcome, err := h.processor.Process(ctx, processor.ProcessParams{
		CompanyID:    req.CompanyID,
		ProgramID:    req.ProgramID,
		ExperienceID: req.ExperienceID,
		AffiliateIDs: req.AffiliateIDs,
		Currency:     req.Currency,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// HandleListPayouts returns the program's recent settlement batches
func (h *Handler) HandleListPayouts(c *gin.Context) {
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
	if companyID == "" {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "companyId is required"))
		return
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "company_id", Value: companyID},
		observability.Field{Key: "program_id", Value: programID.String()},
	)

	if err := h.access.RequireCompanyAdmin(ctx, companyID, userID); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	batches, err := h.processor.ListBatches(ctx, companyID, programID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"batches": batches})
}
