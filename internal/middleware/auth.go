// Package middleware provides authentication, authorization, logging and
// tracing middleware for the HTTP boundary.
package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"reviewdesk/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Fiber locals populated by AuthRequired.
const (
	LocalUserID    = "userID"
	LocalCanReview = "canReview"
)

const (
	tokenIssuer   = "reviewdesk-api"
	tokenAudience = "reviewdesk-client"
)

// Claims are the bearer token claims issued by the identity collaborator.
// Subject is the external user id; CanReview carries the reviewer capability.
type Claims struct {
	CanReview bool `json:"can_review"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token. Used by seed tooling and tests; production
// tokens come from the identity provider sharing the secret.
func IssueToken(secret, subject string, canReview bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		CanReview: canReview,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates signature, issuer, audience and expiry.
func ParseToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("missing subject")
	}
	return claims, nil
}

// AuthRequired enforces a bearer token and stores the caller identity in
// Fiber locals and the request context.
func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid authorization header format"))
		}

		claims, err := ParseToken(secret, parts[1])
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		c.Locals(LocalUserID, claims.Subject)
		c.Locals(LocalCanReview, claims.CanReview)
		ctx := context.WithValue(c.UserContext(), UserIDKey, claims.Subject)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// RequireReviewer rejects callers without the review capability with 403.
// Must be placed after AuthRequired.
func RequireReviewer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !CanReview(c) {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewUnauthorizedError("Reviewer access required"))
		}
		return c.Next()
	}
}

// UserID returns the authenticated caller id, or "" when unauthenticated.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

// CanReview reports whether the caller holds the review capability.
func CanReview(c *fiber.Ctx) bool {
	ok, _ := c.Locals(LocalCanReview).(bool)
	return ok
}
