package service

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/curriculum-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
)

// IdentityService verifies identity tokens issued by the upstream provider.
type IdentityService struct {
	secret []byte
	issuer string
}

// NewIdentityService constructs the verifier. An empty issuer skips the issuer check.
func NewIdentityService(secret, issuer string) *IdentityService {
	return &IdentityService{secret: []byte(secret), issuer: strings.TrimSpace(issuer)}
}

// ValidateToken parses an HS256 token and returns its claims.
func (s *IdentityService) ValidateToken(tokenString string) (*models.IdentityClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthenticated.Code, appErrors.ErrUnauthenticated.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.IdentityClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthenticated, "invalid token claims")
	}
	if claims.UserID == "" || claims.TenantID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthenticated, "token is missing user or tenant")
	}
	if !claims.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthenticated, "token carries an unknown role")
	}
	return claims, nil
}
