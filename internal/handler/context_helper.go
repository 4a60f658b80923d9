package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/redtape-api/internal/middleware"
	"github.com/noah-isme/redtape-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// actorFromContext identifies the admin performing an audited action.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.Actor{}, false
	}
	return models.Actor{UserID: claims.UserID, IP: c.ClientIP()}, true
}
