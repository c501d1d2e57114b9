package processor

import (
	"affiliate-server/internal/clients/platform"
	"affiliate-server/internal/observability"
	"context"
	"errors"
)

var (
	ErrInvalidUserToken         = errors.New("invalid user token")
	ErrCompanyAdminRequired     = errors.New("company admin access required")
	ErrExperienceAccessRequired = errors.New("experience access required")
)

// AccessClient is the slice of the platform API the access guard needs
type AccessClient interface {
	VerifyUserToken(ctx context.Context, token string) (string, error)
	CheckCompanyAccess(ctx context.Context, companyID, userID string) (platform.AccessResult, error)
	CheckExperienceAccess(ctx context.Context, experienceID, userID string) (platform.AccessResult, error)
}

// AccessProcessor wraps the platform's identity and permission checks.
// Every tenant-scoped operation goes through one of its gates before any
// storage access.
type AccessProcessor struct {
	client AccessClient
	logger *observability.Logger
}

func New(client AccessClient, logger *observability.Logger) AccessProcessor {
	return AccessProcessor{client: client, logger: logger}
}

// VerifyUser resolves a platform-issued user token to a user id
func (p *AccessProcessor) VerifyUser(ctx context.Context, token string) (string, error) {
	userID, err := p.client.VerifyUserToken(ctx, token)
	if err != nil {
		return "", ErrInvalidUserToken
	}
	return userID, nil
}

// CheckCompanyAccess returns the user's access level for a company dashboard.
// Platform lookup failures degrade to no access rather than surfacing.
func (p *AccessProcessor) CheckCompanyAccess(ctx context.Context, companyID, userID string) platform.AccessResult {
	result, err := p.client.CheckCompanyAccess(ctx, companyID, userID)
	if err != nil {
		p.logger.InfoWithError(ctx, "company access check failed, treating as no access", err)
		return platform.AccessResult{HasAccess: false, AccessLevel: platform.AccessLevelNone}
	}
	return result
}

// CheckExperienceAccess returns the user's access level for an experience.
// Platform lookup failures degrade to no access rather than surfacing.
func (p *AccessProcessor) CheckExperienceAccess(ctx context.Context, experienceID, userID string) platform.AccessResult {
	result, err := p.client.CheckExperienceAccess(ctx, experienceID, userID)
	if err != nil {
		p.logger.InfoWithError(ctx, "experience access check failed, treating as no access", err)
		return platform.AccessResult{HasAccess: false, AccessLevel: platform.AccessLevelNone}
	}
	return result
}

// RequireCompanyAdmin fails unless the user is an admin of the company
func (p *AccessProcessor) RequireCompanyAdmin(ctx context.Context, companyID, userID string) error {
	access := p.CheckCompanyAccess(ctx, companyID, userID)
	if !access.HasAccess || access.AccessLevel != platform.AccessLevelAdmin {
		return ErrCompanyAdminRequired
	}
	return nil
}

// RequireExperienceAccess fails unless the user is a member of the experience
func (p *AccessProcessor) RequireExperienceAccess(ctx context.Context, experienceID, userID string) error {
	access := p.CheckExperienceAccess(ctx, experienceID, userID)
	if !access.HasAccess {
		return ErrExperienceAccessRequired
	}
	return nil
}
