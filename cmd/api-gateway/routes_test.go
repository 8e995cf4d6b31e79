package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/curriculum-api/internal/handler"
	"github.com/noah-isme/curriculum-api/internal/models"
	"github.com/noah-isme/curriculum-api/internal/service"
	"github.com/noah-isme/curriculum-api/pkg/config"
)

const routesSecret = "routes-secret"

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerRoutes(r, &config.Config{Env: config.EnvProduction, APIPrefix: "/api/v1"}, routeHandlers{
		identity:   service.NewIdentityService(routesSecret, ""),
		frameworks: handler.NewFrameworkHandler(nil, nil),
		versions:   handler.NewVersionHandler(nil),
		approvals:  handler.NewApprovalHandler(nil),
		structure:  handler.NewStructureHandler(nil),
		mappings:   handler.NewMappingHandler(nil),
		metrics:    handler.NewMetricsHandler(service.NewMetricsService(), nil),
	})
	return r
}

func bearer(t *testing.T, role models.Role) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, models.IdentityClaims{
		UserID:           "user-1",
		TenantID:         "tenant-1",
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(routesSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRoutesProbesArePublic(t *testing.T) {
	r := newTestRouter()
	for _, path := range []string{"/health", "/ready", "/metrics"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRoutesAdmission(t *testing.T) {
	cases := []struct {
		name   string
		method string
		path   string
		role   models.Role
		status int
	}{
		{"teacher cannot create frameworks", http.MethodPost, "/api/v1/frameworks", models.RoleTeacher, http.StatusForbidden},
		{"qa cannot edit structure", http.MethodPost, "/api/v1/courses/c-1/units", models.RoleQA, http.StatusForbidden},
		{"designer cannot decide", http.MethodPatch, "/api/v1/approvals/a-1", models.RoleCurriculumDesigner, http.StatusForbidden},
		{"designer cannot delete mappings", http.MethodDelete, "/api/v1/mappings/m-1", models.RoleCurriculumDesigner, http.StatusForbidden},
		{"teacher cannot list reviewers", http.MethodGet, "/api/v1/reviewers", models.RoleTeacher, http.StatusForbidden},
		{"missing token", http.MethodGet, "/api/v1/frameworks", "", http.StatusUnauthorized},
	}
	r := newTestRouter()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.role != "" {
				req.Header.Set("Authorization", bearer(t, tc.role))
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRoutesDocsHiddenInProduction(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs/index.html", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
