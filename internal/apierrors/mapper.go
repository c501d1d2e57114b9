package apierrors

import (
	"errors"

	affiliateProcessor "affiliate-server/internal/affiliate/processor"
	authProcessor "affiliate-server/internal/auth/processor"
	"affiliate-server/internal/clients/platform"
	creativeProcessor "affiliate-server/internal/creative/processor"
	earningsProcessor "affiliate-server/internal/earnings/processor"
	offerProcessor "affiliate-server/internal/offer/processor"
	payoutProcessor "affiliate-server/internal/payouts/processor"
	programProcessor "affiliate-server/internal/program/processor"
	"affiliate-server/internal/store"
)

// MapError converts domain/processor errors to APIErrors.
// This function centralizes all error mapping logic to ensure consistent
// error responses across the entire API.
//
// If the error is already an APIError, it returns it as-is.
// If the error is a known domain error, it maps it to an appropriate APIError.
// If the error is unknown, it returns a sanitized InternalError (500).
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	// Access guard errors
	case errors.Is(err, authProcessor.ErrInvalidUserToken):
		return Unauthorized("Invalid or missing user token")

	case errors.Is(err, authProcessor.ErrCompanyAdminRequired):
		return Forbidden("Company admin access required")

	case errors.Is(err, authProcessor.ErrExperienceAccessRequired):
		return Forbidden("Experience access required")

	// Program errors
	case errors.Is(err, programProcessor.ErrProgramNotFound):
		return NotFound(CodeProgramNotFound, "Program not found")

	case errors.Is(err, programProcessor.ErrInvalidRate):
		return BadRequest(CodeInvalidRate, "Commission rate must be between 0 and 100")

	case errors.Is(err, programProcessor.ErrInvalidPayoutFrequency):
		return BadRequest(CodeInvalidInput, "Payout frequency must be weekly or monthly")

	// Offer errors
	case errors.Is(err, offerProcessor.ErrOfferNotFound):
		return NotFound(CodeOfferNotFound, "Offer not found")

	case errors.Is(err, offerProcessor.ErrProgramMismatch):
		return BadRequest(CodeProgramNotFound, "Invalid program or company")

	// Creative errors
	case errors.Is(err, creativeProcessor.ErrCreativeNotFound):
		return NotFound(CodeCreativeNotFound, "Creative not found")

	case errors.Is(err, creativeProcessor.ErrOfferNotFound):
		return NotFound(CodeOfferNotFound, "Offer not found")

	case errors.Is(err, creativeProcessor.ErrUploadFailed):
		return ServiceUnavailable(CodeUploadFailed, "File upload is temporarily unavailable. Please try again later.", err)

	// Earnings errors
	case errors.Is(err, earningsProcessor.ErrProgramNotFound):
		return NotFound(CodeProgramNotFound, "Program not found")

	// Affiliate errors
	case errors.Is(err, affiliateProcessor.ErrProgramNotFound):
		return NotFound(CodeProgramNotFound, "Program not found")

	case errors.Is(err, affiliateProcessor.ErrProgramInactive):
		return BadRequest(CodeProgramInactive, "Program not found or inactive")

	case errors.Is(err, affiliateProcessor.ErrAlreadyApplied):
		return BadRequest(CodeAlreadyApplied, "Already applied to this program")

	case errors.Is(err, affiliateProcessor.ErrAffiliateNotFound):
		return NotFound(CodeAffiliateNotFound, "Affiliate not found")

	case errors.Is(err, affiliateProcessor.ErrNoAffiliateRecord):
		return NotFound(CodeAffiliateNotFound, "No affiliate record found")

	case errors.Is(err, affiliateProcessor.ErrNotPending):
		return Conflict(CodeAlreadyApplied, "Affiliate application has already been decided")

	// Payout errors
	case errors.Is(err, payoutProcessor.ErrProgramNotFound):
		return NotFound(CodeProgramNotFound, "Program not found")

	case errors.Is(err, payoutProcessor.ErrLedgerAccountNotFound):
		return BadRequest(CodeLedgerNotFound, "Company ledger account not found")

	// Platform client errors
	case errors.Is(err, platform.ErrRequestFailed):
		return ServiceUnavailable(CodePaymentProviderError,
			"The commerce platform is temporarily unavailable. Please try again later.", err)

	// Store errors
	case errors.Is(err, store.ErrNotFound):
		return NotFound(CodeNotFound, "Resource not found")

	default:
		return InternalError(err)
	}
}
