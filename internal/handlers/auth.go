package handlers

import (
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/courselab/quiz-service/internal/config"
	"github.com/gin-gonic/gin"
)

// InitAuth wires the Casdoor SDK from config. Call once at startup before
// any auth middleware runs.
func InitAuth(cfg config.CasdoorConfig) {
	casdoorsdk.InitConfig(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Certificate,
		cfg.Organization,
		cfg.Application,
	)
}

// AuthRequired rejects requests without a valid bearer token and puts the
// authenticated user's id and name into the gin context.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Missing bearer token",
			})
			return
		}

		claims, err := casdoorsdk.ParseJwtToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Invalid token",
				Details: err.Error(),
			})
			return
		}

		c.Set("user_id", claims.User.Id)
		c.Set("user_name", claims.User.Name)
		c.Next()
	}
}

// AuthOptional attaches the user to the context when a valid token is
// present but lets anonymous requests through. Player and onboarding
// endpoints work for both.
func AuthOptional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if claims, err := casdoorsdk.ParseJwtToken(token); err == nil {
				c.Set("user_id", claims.User.Id)
				c.Set("user_name", claims.User.Name)
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
