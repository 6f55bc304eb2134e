package jwttoken

import (
	"qsync/internal/platform/middleware"
)

// JWTServiceAdapter exposes JWTService as a middleware.TokenValidator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.ActorClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.ActorClaims{UserID: claims.UserID, Unit: claims.Unit}, nil
}
