package credentials

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is the unverified content of an access token, used for display
// and to know when to log in again. The server remains the authority.
type TokenInfo struct {
	ID        string
	Subject   string
	OrgID     string
	ExpiresAt time.Time
}

type accessClaims struct {
	OrgID string `json:"org_id"`
	jwt.RegisteredClaims
}

// InspectToken decodes token without verifying its signature.
func InspectToken(token string) (*TokenInfo, error) {
	claims := &accessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	info := &TokenInfo{ID: claims.ID, Subject: claims.Subject, OrgID: claims.OrgID}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}
