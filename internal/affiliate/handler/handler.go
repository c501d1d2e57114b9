package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"affiliate-server/internal/affiliate/processor"
	"affiliate-server/internal/apierrors"
	authHandler "affiliate-server/internal/auth/handler"
	"affiliate-server/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AccessGuard gates affiliate routes: admins manage applications, members
// apply and read their own earnings.
type AccessGuard interface {
	RequireCompanyAdmin(ctx context.Context, companyID, userID string) error
	RequireExperienceAccess(ctx context.Context, experienceID, userID string) error
}

type Handler struct {
	processor processor.AffiliateProcessor
	access    AccessGuard
	logger    *observability.Logger
}

func New(processor processor.AffiliateProcessor, access AccessGuard, logger *observability.Logger) Handler {
	return Handler{
		processor: processor,
		access:    access,
		logger:    logger,
	}
}

// ApplyRequest represents an affiliate application in an HTTP request
type ApplyRequest struct {
	ProgramID    uuid.UUID `json:"programId" binding:"required"`
	ExperienceID string    `json:"experienceId" binding:"required"`
}

// DecisionRequest represents an approve/reject call in an HTTP request
type DecisionRequest struct {
	CompanyID    string   `json:"companyId" binding:"required"`
	ExperienceID *string  `json:"experienceId,omitempty"`
	CustomRate   *float64 `json:"customRate,omitempty" binding:"omitempty,gte=0,lte=100"`
	Tier         *string  `json:"tier,omitempty"`
}

// UpdateTermsRequest represents a commission terms update in an HTTP request
type UpdateTermsRequest struct {
	CompanyID  string     `json:"companyId" binding:"required"`
	CustomRate *float64   `json:"customRate,omitempty" binding:"omitempty,gte=0,lte=100"`
	Tier       *string    `json:"tier,omitempty"`
	RateExpiry *time.Time `json:"rateExpiry,omitempty"`
}

func affiliateIDParam(c *gin.Context) (uuid.UUID, bool) {
	affiliateID, err := uuid.Parse(c.Param("affiliateID"))
	if err != nil {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "Invalid affiliate id"))
		return uuid.Nil, false
	}
	return affiliateID, true
}

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

// HandleApply enrolls the caller as a pending affiliate. A repeat application
// answers 400 and echoes the existing record so clients can show its status.
func (h *Handler) HandleApply(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := authHandler.RequireUserID(c)
	if !ok {
		return
	}

	var req ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "program_id", Value: req.ProgramID.String()},
		observability.Field{Key: "experience_id", Value: req.ExperienceID},
	)

	if err := h.access.RequireExperienceAccess(ctx, req.ExperienceID, userID); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	affiliate, err := h.processor.Apply(ctx, userID, req.ProgramID)
	if err != nil {
		if errors.Is(err, processor.ErrAlreadyApplied) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "Already applied to this program",
				"code":      apierrors.CodeAlreadyApplied,
				"affiliate": affiliate,
			})
			return
		}
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, affiliate)
}

// HandleApprove approves a pending application
func (h *Handler) HandleApprove(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := authHandler.RequireUserID(c)
	if !ok {
		return
	}
	affiliateID, ok := affiliateIDParam(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "company_id", Value: req.CompanyID},
		observability.Field{Key: "affiliate_id", Value: affiliateID.String()},
	)

	if !h.requireAdmin(c, ctx, req.CompanyID, userID) {
		return
	}

	affiliate, err := h.processor.Approve(ctx, req.CompanyID, affiliateID, req.CustomRate, req.Tier, req.ExperienceID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, affiliate)
}

// HandleReject rejects a pending application
func (h *Handler) HandleReject(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := authHandler.RequireUserID(c)
	if !ok {
		return
	}
	affiliateID, ok := affiliateIDParam(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "company_id", Value: req.CompanyID},
		observability.Field{Key: "affiliate_id", Value: affiliateID.String()},
	)

	if !h.requireAdmin(c, ctx, req.CompanyID, userID) {
		return
	}

	affiliate, err := h.processor.Reject(ctx, req.CompanyID, affiliateID, req.ExperienceID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, affiliate)
}

// HandleUpdateTerms updates an affiliate's commission terms
func (h *Handler) HandleUpdateTerms(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := authHandler.RequireUserID(c)
	if !ok {
		return
	}
	affiliateID, ok := affiliateIDParam(c)
	if !ok {
		return
	}

	var req UpdateTermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "company_id", Value: req.CompanyID},
		observability.Field{Key: "affiliate_id", Value: affiliateID.String()},
	)

	if !h.requireAdmin(c, ctx, req.CompanyID, userID) {
		return
	}

	affiliate, err := h.processor.UpdateTerms(ctx, req.CompanyID, affiliateID, processor.UpdateTermsParams{
		CustomRate: req.CustomRate,
		Tier:       req.Tier,
		RateExpiry: req.RateExpiry,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, affiliate)
}

// HandleListAffiliates lists the program's affiliates, newest application
// first.
func (h *Handler) HandleListAffiliates(c *gin.Context) {
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

	var status *string
	if value := c.Query("status"); value != "" {
		status = &value
	}

	affiliates, err := h.processor.List(ctx, companyID, programID, status)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"affiliates": affiliates})
}

// HandleGetAffiliate returns one affiliate with its earnings summary
func (h *Handler) HandleGetAffiliate(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := authHandler.RequireUserID(c)
	if !ok {
		return
	}
	affiliateID, ok := affiliateIDParam(c)
	if !ok {
		return
	}
	companyID := c.Query("companyId")

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "company_id", Value: companyID},
		observability.Field{Key: "affiliate_id", Value: affiliateID.String()},
	)

	if !h.requireAdmin(c, ctx, companyID, userID) {
		return
	}

	affiliate, summary, err := h.processor.GetDetail(ctx, companyID, affiliateID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"affiliate": affiliate, "earnings": summary})
}

// HandleGetMyEarnings returns the caller's own earnings view for a program
func (h *Handler) HandleGetMyEarnings(c *gin.Context) {
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
	experienceID := c.Query("experienceId")
	if experienceID == "" {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "experienceId is required"))
		return
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "program_id", Value: programID.String()},
		observability.Field{Key: "experience_id", Value: experienceID},
	)

	if err := h.access.RequireExperienceAccess(ctx, experienceID, userID); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	earnings, err := h.processor.GetMyEarnings(ctx, userID, programID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, earnings)
}
