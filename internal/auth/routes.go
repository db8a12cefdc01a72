package auth

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the signup and login routes
func RegisterRoutes(rg *gin.RouterGroup, handler *Handler) {
	rg.POST("/signup", handler.Signup)
	rg.POST("/login", handler.Login)
}
