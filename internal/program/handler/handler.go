package handler

import (
	"context"
	"net/http"

	"affiliate-server/internal/apierrors"
	authHandler "affiliate-server/internal/auth/handler"
	"affiliate-server/internal/observability"
	"affiliate-server/internal/program/processor"

	"github.com/gin-gonic/gin"
)

// AccessGuard gates program administration to company admins
type AccessGuard interface {
	RequireCompanyAdmin(ctx context.Context, companyID, userID string) error
}

type Handler struct {
	processor processor.ProgramProcessor
	access    AccessGuard
	logger    *observability.Logger
}

func New(processor processor.ProgramProcessor, access AccessGuard, logger *observability.Logger) Handler {
	return Handler{
		processor: processor,
		access:    access,
		logger:    logger,
	}
}

// UpsertProgramRequest represents the program configuration in an HTTP request
type UpsertProgramRequest struct {
	CompanyID       string  `json:"companyId" binding:"required"`
	DefaultRate     float64 `json:"defaultRate" binding:"gte=0,lte=100"`
	PayoutFrequency *string `json:"payoutFrequency,omitempty" binding:"omitempty,oneof=weekly monthly"`
	CookieWindow    *int    `json:"cookieWindow,omitempty" binding:"omitempty,gt=0"`
	Status          *string `json:"status,omitempty" binding:"omitempty,oneof=active inactive"`
}

// HandleUpsertProgram creates or replaces the company's program configuration
func (h *Handler) HandleUpsertProgram(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := authHandler.RequireUserID(c)
	if !ok {
		return
	}

	var req UpsertProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	ctx = observability.WithFields(ctx, observability.Field{Key: "company_id", Value: req.CompanyID})

	if err := h.access.RequireCompanyAdmin(ctx, req.CompanyID, userID); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	program, err := h.processor.UpsertProgram(ctx, req.CompanyID, processor.UpsertProgramParams{
		DefaultRate:     req.DefaultRate,
		PayoutFrequency: req.PayoutFrequency,
		CookieWindow:    req.CookieWindow,
		Status:          req.Status,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, program)
}

// HandleGetProgram returns the company's program with counts
func (h *Handler) HandleGetProgram(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := authHandler.RequireUserID(c)
	if !ok {
		return
	}

	companyID := c.Query("companyId")
	if companyID == "" {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "companyId is required"))
		return
	}
	ctx = observability.WithFields(ctx, observability.Field{Key: "company_id", Value: companyID})

	if err := h.access.RequireCompanyAdmin(ctx, companyID, userID); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	program, err := h.processor.GetProgram(ctx, companyID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, program)
}
