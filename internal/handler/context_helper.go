package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/arka-edu/timetable-api/internal/middleware"
	"github.com/arka-edu/timetable-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// branchFromContext resolves the caller's branch. The JWT middleware rejects
// tokens without a branch claim, so an empty result means the route was
// mounted without authentication.
func branchFromContext(c *gin.Context) string {
	claims := claimsFromContext(c)
	if claims == nil {
		return ""
	}
	return claims.BranchID
}
