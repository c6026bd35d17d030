package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	ShopID *uuid.UUID
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to shop owners.
type AccessTokenClaims struct {
	UserID uuid.UUID  `json:"user_id"`
	ShopID *uuid.UUID `json:"shop_id,omitempty"`
	jwt.RegisteredClaims
}
