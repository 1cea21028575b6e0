package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/arrxxhh/Payment-gateway/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const (
	UserContextKey = "userID"
	RoleContextKey = "role"
)

// AuthMiddleware resolves the caller from a Bearer HMAC JWT signed with
// jwtSecret. X-User-ID / X-User-Role (or their cookies) are read only when
// trustGatewayHeaders is set, i.e. when a gateway that verified the token sits
// in front of the service; a Bearer token still wins over them.
func AuthMiddleware(jwtSecret string, trustGatewayHeaders bool) gin.HandlerFunc {
	secret := []byte(strings.TrimSpace(jwtSecret))

	return func(c *gin.Context) {
		var userID, role string

		if header := c.GetHeader("Authorization"); header != "" {
			if !strings.HasPrefix(header, "Bearer ") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
				return
			}
			claims, err := parseToken(strings.TrimPrefix(header, "Bearer "), secret)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
				return
			}
			userID = claimString(claims, "sub", "userId", "user_id")
			role = claimString(claims, "role")
		} else if trustGatewayHeaders {
			userID = c.GetHeader("X-User-ID")
			role = c.GetHeader("X-User-Role")
			if userID == "" {
				if v, err := c.Cookie("user_id"); err == nil {
					userID = v
				}
			}
			if role == "" {
				if v, err := c.Cookie("user_role"); err == nil {
					role = v
				}
			}
		}

		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(UserContextKey, userID)
		c.Set(RoleContextKey, string(models.ParseRole(role)))
		c.Next()
	}
}

func parseToken(tokenStr string, secret []byte) (jwt.MapClaims, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("JWT secret not configured")
	}
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

func claimString(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		if v, ok := claims[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// GetCaller reads the identity set by AuthMiddleware.
func GetCaller(c *gin.Context) models.Caller {
	return models.Caller{
		UserID: c.GetString(UserContextKey),
		Role:   models.ParseRole(c.GetString(RoleContextKey)),
	}
}
