package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/doc-control-api/internal/models"
	"github.com/noah-isme/doc-control-api/internal/service"
	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", handlers...)
	return r
}

func serve(r http.Handler, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Roles: []string{models.RoleDocAdmin}}
	var seen *models.JWTClaims
	r := newRouter(JWT(stubValidator{claims: claims}), func(c *gin.Context) {
		seen = CurrentUser(c)
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Bearer bad").Code)
	assert.Nil(t, seen)

	require.Equal(t, http.StatusNoContent, serve(r, "bearer good").Code)
	assert.Equal(t, "u1", seen.UserID)
}

func TestOptionalJWT(t *testing.T) {
	var seen *models.JWTClaims
	r := newRouter(OptionalJWT(stubValidator{claims: &models.JWTClaims{UserID: "u1"}}), func(c *gin.Context) {
		seen = CurrentUser(c)
		c.Status(http.StatusNoContent)
	})

	require.Equal(t, http.StatusNoContent, serve(r, "Bearer bad").Code)
	assert.Nil(t, seen)
	require.Equal(t, http.StatusNoContent, serve(r, "Bearer good").Code)
	assert.Equal(t, "u1", seen.UserID)
}

func TestRBAC(t *testing.T) {
	withClaims := func(claims *models.JWTClaims) gin.HandlerFunc {
		return func(c *gin.Context) {
			if claims != nil {
				c.Set(ContextUserKey, claims)
			}
		}
	}
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }

	cases := []struct {
		name   string
		claims *models.JWTClaims
		want   int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"wrong role", &models.JWTClaims{UserID: "u1", Roles: []string{models.RoleAuditor}}, http.StatusForbidden},
		{"allowed", &models.JWTClaims{UserID: "u1", Roles: []string{"ENGINEER", models.RoleDistributor}}, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(withClaims(tc.claims), RBAC(models.RoleAdmin, models.RoleDistributor), ok)
			assert.Equal(t, tc.want, serve(r, "").Code)
		})
	}
}

func TestAuditStoresRequestMeta(t *testing.T) {
	var meta service.RequestMeta
	r := newRouter(Audit(), func(c *gin.Context) {
		meta = service.RequestMetaFrom(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("User-Agent", "dcs-client/1.0")
	req.RemoteAddr = "192.0.2.10:5000"
	r.ServeHTTP(w, req)

	assert.Equal(t, "192.0.2.10", meta.IP)
	assert.Equal(t, "dcs-client/1.0", meta.UserAgent)
}

func TestMetricsLabelsUnmatchedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/documents/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/documents/1", "/documents/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	count, err := testutil.GatherAndCount(metrics.Registry(), "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
