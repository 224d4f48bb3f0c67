package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campusrec/records-api/internal/middleware"
	"github.com/campusrec/records-api/internal/models"
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

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func paginationFromQuery(c *gin.Context) (page, pageSize int) {
	return queryInt(c, "page", 1), queryInt(c, "pageSize", 20)
}
