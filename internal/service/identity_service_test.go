package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/curriculum-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
)

func signIdentity(t *testing.T, method jwt.SigningMethod, secret string, claims models.IdentityClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func identityClaims(role models.Role) models.IdentityClaims {
	return models.IdentityClaims{
		UserID:   "user-1",
		TenantID: "tenant-1",
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "idp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestIdentityServiceValidateToken(t *testing.T) {
	svc := NewIdentityService("secret", "idp")

	claims, err := svc.ValidateToken(signIdentity(t, jwt.SigningMethodHS256, "secret", identityClaims(models.RoleQA)))
	require.NoError(t, err)
	assert.Equal(t, models.Identity{ActorID: "user-1", TenantID: "tenant-1", Role: models.RoleQA}, claims.Identity())
}

func TestIdentityServiceRejectsBadTokens(t *testing.T) {
	svc := NewIdentityService("secret", "idp")

	expired := identityClaims(models.RoleAdmin)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongIssuer := identityClaims(models.RoleAdmin)
	wrongIssuer.Issuer = "other"

	noTenant := identityClaims(models.RoleAdmin)
	noTenant.TenantID = ""

	cases := map[string]string{
		"wrong secret":  signIdentity(t, jwt.SigningMethodHS256, "other", identityClaims(models.RoleAdmin)),
		"wrong method":  signIdentity(t, jwt.SigningMethodHS512, "secret", identityClaims(models.RoleAdmin)),
		"expired":       signIdentity(t, jwt.SigningMethodHS256, "secret", expired),
		"wrong issuer":  signIdentity(t, jwt.SigningMethodHS256, "secret", wrongIssuer),
		"missing scope": signIdentity(t, jwt.SigningMethodHS256, "secret", noTenant),
		"unknown role":  signIdentity(t, jwt.SigningMethodHS256, "secret", identityClaims(models.Role("principal"))),
		"garbage":       "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrUnauthenticated.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestIdentityServiceWithoutIssuer(t *testing.T) {
	svc := NewIdentityService("secret", "")
	claims := identityClaims(models.RoleTeacher)
	claims.Issuer = "anyone"

	got, err := svc.ValidateToken(signIdentity(t, jwt.SigningMethodHS256, "secret", claims))
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, got.Role)
}
