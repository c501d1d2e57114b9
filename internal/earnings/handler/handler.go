package handler

import (
	"context"
	"net/http"

	"affiliate-server/internal/apierrors"
	authHandler "affiliate-server/internal/auth/handler"
	"affiliate-server/internal/earnings/processor"
	"affiliate-server/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AccessGuard gates the earnings aggregation to company admins
type AccessGuard interface {
	RequireCompanyAdmin(ctx context.Context, companyID, userID string) error
}

type Handler struct {
	processor processor.EarningsProcessor
	access    AccessGuard
	logger    *observability.Logger
}

func New(processor processor.EarningsProcessor, access AccessGuard, logger *observability.Logger) Handler {
	return Handler{
		processor: processor,
		access:    access,
		logger:    logger,
	}
}

// HandleGetEarnings returns the per-affiliate earnings aggregation for a
// program, optionally restricted to pending or paid amounts.
func (h *Handler) HandleGetEarnings(c *gin.Context) {
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

	var status *string
	if value := c.Query("status"); value != "" {
		if value != "pending" && value != "paid" {
			apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput,
				"status must be pending or paid"))
			return
		}
		status = &value
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "company_id", Value: companyID},
		observability.Field{Key: "program_id", Value: programID.String()},
	)

	if err := h.access.RequireCompanyAdmin(ctx, companyID, userID); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	aggregation, err := h.processor.Aggregate(ctx, companyID, programID, status)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, aggregation)
}
