package handler

import (
	"context"
	"io"
	"net/http"

	"affiliate-server/internal/apierrors"
	authHandler "affiliate-server/internal/auth/handler"
	"affiliate-server/internal/creative/processor"
	"affiliate-server/internal/observability"
	"affiliate-server/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxUploadBytes caps creative file uploads
const maxUploadBytes = 25 << 20

// AccessGuard gates creative administration to company admins
type AccessGuard interface {
	RequireCompanyAdmin(ctx context.Context, companyID, userID string) error
}

type Handler struct {
	processor processor.CreativeProcessor
	access    AccessGuard
	logger    *observability.Logger
}

func New(processor processor.CreativeProcessor, access AccessGuard, logger *observability.Logger) Handler {
	return Handler{
		processor: processor,
		access:    access,
		logger:    logger,
	}
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

// HandleUploadCreative accepts a multipart upload (file plus form fields) and
// registers the creative under its offer.
func (h *Handler) HandleUploadCreative(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := authHandler.RequireUserID(c)
	if !ok {
		return
	}

	companyID := c.PostForm("companyId")
	offerID, err := uuid.Parse(c.PostForm("offerId"))
	if err != nil {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "Invalid offer id"))
		return
	}

	title := c.PostForm("title")
	if title == "" {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "title is required"))
		return
	}

	creativeType := c.PostForm("type")
	switch creativeType {
	case store.CreativeTypeImage, store.CreativeTypeVideo, store.CreativeTypeDocument:
	default:
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput,
			"type must be image, video or document"))
		return
	}

	var notes *string
	if value := c.PostForm("notes"); value != "" {
		notes = &value
	}
	var experienceID *string
	if value := c.PostForm("experienceId"); value != "" {
		experienceID = &value
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "company_id", Value: companyID},
		observability.Field{Key: "offer_id", Value: offerID.String()},
	)

	if !h.requireAdmin(c, ctx, companyID, userID) {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "file is required"))
		return
	}
	if fileHeader.Size > maxUploadBytes {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "file is too large"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	creative, err := h.processor.UploadCreative(ctx, companyID, processor.UploadCreativeParams{
		OfferID:      offerID,
		Title:        title,
		Type:         creativeType,
		Notes:        notes,
		ExperienceID: experienceID,
		FileName:     fileHeader.Filename,
		ContentType:  fileHeader.Header.Get("Content-Type"),
		Data:         data,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, creative)
}

// HandleListCreatives lists creatives for an offer or a whole program
func (h *Handler) HandleListCreatives(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := authHandler.RequireUserID(c)
	if !ok {
		return
	}

	companyID := c.Query("companyId")

	var offerID, programID *uuid.UUID
	if value := c.Query("offerId"); value != "" {
		parsed, err := uuid.Parse(value)
		if err != nil {
			apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "Invalid offer id"))
			return
		}
		offerID = &parsed
	}
	if value := c.Query("programId"); value != "" {
		parsed, err := uuid.Parse(value)
		if err != nil {
			apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "Invalid program id"))
			return
		}
		programID = &parsed
	}
	if offerID == nil && programID == nil {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput,
			"offerId or programId is required"))
		return
	}

	ctx = observability.WithFields(ctx, observability.Field{Key: "company_id", Value: companyID})

	if !h.requireAdmin(c, ctx, companyID, userID) {
		return
	}

	creatives, err := h.processor.ListCreatives(ctx, companyID, offerID, programID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"creatives": creatives})
}

// HandleDeleteCreative hard-deletes a creative
func (h *Handler) HandleDeleteCreative(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := authHandler.RequireUserID(c)
	if !ok {
		return
	}

	creativeID, err := uuid.Parse(c.Param("creativeID"))
	if err != nil {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "Invalid creative id"))
		return
	}
	companyID := c.Query("companyId")

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "company_id", Value: companyID},
		observability.Field{Key: "creative_id", Value: creativeID.String()},
	)

	if !h.requireAdmin(c, ctx, companyID, userID) {
		return
	}

	if err := h.processor.DeleteCreative(ctx, companyID, creativeID); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
