package jwttoken

import (
	id "qochi/pkg/domain"
	dErrors "qochi/pkg/domain-errors"
	authmw "qochi/pkg/platform/middleware/auth"
)

// Verifier exposes JWTService to the auth middleware with typed claims.
type Verifier struct {
	service *JWTService
}

func NewVerifier(service *JWTService) *Verifier {
	return &Verifier{service: service}
}

// ValidateToken also requires the subject to name the same household as
// the household_id claim.
func (v *Verifier) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := v.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	householdID, err := id.ParseHouseholdID(claims.HouseholdID)
	if err != nil || claims.Subject != householdID.String() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return &authmw.JWTClaims{HouseholdID: householdID, JTI: claims.ID}, nil
}
