package idpsdk

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const assertionAudience = "idp-admin"

var errMissingAPIKey = errors.New("idpsdk: api key not configured")

// adminAssertion mints the bearer token for admin-scoped calls.
func (c *Client) adminAssertion(now time.Time) (string, error) {
	if len(c.apiKey) == 0 {
		return "", errMissingAPIKey
	}

	claims := jwt.RegisteredClaims{
		Issuer:    c.ProjectID,
		Subject:   c.ProjectID,
		Audience:  jwt.ClaimStrings{assertionAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.assertionTTL)),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.apiKey)
}

// VerifyAdminAssertion parses and validates an assertion minted with apiKey.
// Providers and test doubles use it to authenticate admin calls.
func VerifyAdminAssertion(token, projectID string, apiKey []byte) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return apiKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(assertionAudience),
		jwt.WithIssuer(projectID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
