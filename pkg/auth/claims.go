package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenClaims represents the typed JWT issued to storefront clients by
// the upstream identity service.
type AccessTokenClaims struct {
	UserID  uuid.UUID `json:"user_id"`
	Role    string    `json:"role"`
	IsAdmin bool      `json:"is_admin,omitempty"`
	jwt.RegisteredClaims
}

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID  uuid.UUID
	Role    string
	IsAdmin bool
	JTI     string
}
