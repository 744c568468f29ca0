package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/schoolcore/timetable-api/internal/middleware"
	"github.com/schoolcore/timetable-api/internal/models"
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
