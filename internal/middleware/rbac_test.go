package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/strumline/guitar-crm-api/internal/models"
)

func performRBAC(t *testing.T, claims *models.JWTClaims, path string, allowed ...string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/resource/:id", func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}, RBAC(allowed...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRBACAllowsMatchingFlag(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", IsTeacher: true}
	w := performRBAC(t, claims, "/resource/x", RoleTeacher, RoleAdmin)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRBACMultiRolePassesOnAnyFlag(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", IsTeacher: true, IsStudent: true}
	w := performRBAC(t, claims, "/resource/x", RoleAdmin, RoleStudent)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRBACRejectsMissingFlag(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", IsStudent: true}
	w := performRBAC(t, claims, "/resource/x", RoleAdmin)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACRejectsNoFlags(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1"}
	w := performRBAC(t, claims, "/resource/x", RoleAdmin, RoleTeacher, RoleStudent)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACAllowSelfMatchesRouteParam(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", IsStudent: true}
	w := performRBAC(t, claims, "/resource/u1", RoleAdmin, AllowSelf)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRBACAllowSelfRejectsOtherID(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", IsStudent: true}
	w := performRBAC(t, claims, "/resource/u2", RoleAdmin, AllowSelf)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACRejectsMissingClaims(t *testing.T) {
	w := performRBAC(t, nil, "/resource/x", RoleAdmin)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
