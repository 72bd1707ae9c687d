package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/worksession-tracker/internal/domain"
	"github.com/spec-kit/worksession-tracker/internal/events"
	apperrors "github.com/spec-kit/worksession-tracker/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	SubjectType domain.SubjectType
	SubjectID   string
	Role        *domain.StaffRole
}

// Anonymous is the principal used when authentication is not required and
// no token was sent.
var Anonymous = &Principal{SubjectType: domain.SubjectTypeAnonymous}

// Actor converts the principal to event actor metadata.
func (p *Principal) Actor() events.Actor {
	if p == nil || p.SubjectType == domain.SubjectTypeAnonymous {
		return events.Actor{Type: domain.SubjectTypeAnonymous}
	}
	id := p.SubjectID
	return events.Actor{Type: p.SubjectType, ID: &id}
}

// AuthMiddleware validates bearer tokens and stores principals.
type AuthMiddleware struct {
	tokens   *TokenManager
	required bool
}

// NewAuthMiddleware constructs middleware. When required is false requests
// without a token pass through as Anonymous; a token that is sent must still
// be valid.
func NewAuthMiddleware(tokens *TokenManager, required bool) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, required: required}
}

// Required reports whether every request must carry a token.
func (m *AuthMiddleware) Required() bool {
	return m.required
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		if m.required {
			return apperrors.NewUnauthorized("missing authorization header")
		}
		c.Locals(principalKey, Anonymous)
		return c.Next()
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	switch claims.Subject {
	case domain.SubjectTypeStaff, domain.SubjectTypeService:
	default:
		return apperrors.NewUnauthorized("unknown subject")
	}

	c.Locals(principalKey, &Principal{
		SubjectType: claims.Subject,
		SubjectID:   claims.SubjectID(),
		Role:        claims.Role,
	})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
