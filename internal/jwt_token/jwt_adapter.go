package jwttoken

import (
	authmw "customerhub/pkg/platform/middleware/auth"
)

func ToMiddlewareClaims(claims *OperatorClaims) *authmw.JWTClaims {
	return &authmw.JWTClaims{
		ActorID: claims.Subject,
		Role:    claims.Role,
		JTI:     claims.ID,
	}
}

// JWTServiceAdapter satisfies authmw.JWTValidator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
