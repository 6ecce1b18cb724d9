package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/arka-edu/timetable-api/internal/models"
)

func rbacRouter(role models.UserRole, guard gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/write", func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1", BranchID: "b1", Role: role})
	}, guard, func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireRoles(t *testing.T) {
	guard := RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleScheduler)

	cases := []struct {
		role models.UserRole
		want int
	}{
		{models.RoleSuperAdmin, http.StatusNoContent},
		{models.RoleAdmin, http.StatusNoContent},
		{models.RoleScheduler, http.StatusNoContent},
		{models.RoleTeacher, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodPost, "/write", nil)
			rbacRouter(tc.role, guard).ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestRBACWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/write", RBAC("ADMIN"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/write", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
