package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/Shiftline/shiftline-notify/config"
	"github.com/Shiftline/shiftline-notify/logger"
)

// UserIDContextKey is the gin context key under which the authenticated
// user's ID is stored. Handlers read it through getUserIDFromContext.
const UserIDContextKey = "user_id"

// AuthMiddleware validates the Bearer token issued by the Shiftline identity
// service and stores the subject claim as the authenticated user ID.
//
// Streaming endpoints (SSE, WebSocket) cannot always set an Authorization
// header from the browser, so a `token` query parameter is accepted as a
// fallback for those requests.
func AuthMiddleware(cfg *config.ServerConfig) gin.HandlerFunc {
	secret := []byte(cfg.JwtSecretKey)

	return func(c *gin.Context) {
		log := logger.GetLogger()

		token := extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization required",
			})
			return
		}

		userID, err := validateJWT(token, secret)
		if err != nil {
			log.Warnw("Invalid JWT token",
				"error", err,
				"request_path", c.Request.URL.Path,
				"request_method", c.Request.Method,
				"client_ip", c.ClientIP())

			message := "Invalid authentication token"
			if strings.Contains(err.Error(), "exp not satisfied") || strings.Contains(err.Error(), "token expired") {
				message = "Your session has expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": message,
			})
			return
		}

		c.Set(UserIDContextKey, userID)
		c.Next()
	}
}

// extractToken pulls the JWT from the Authorization header, falling back to
// the `token` query parameter for streaming requests.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return c.Query("token")
}

// validateJWT verifies the token signature and standard claims, returning the
// subject (the user ID).
func validateJWT(tokenString string, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("JWT secret is not configured")
	}

	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithVerify(true),
		jwt.WithKey(jwa.HS256, secret),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(30*time.Second),
	)
	if err != nil {
		return "", err
	}

	sub := token.Subject()
	if sub == "" {
		return "", fmt.Errorf("missing subject claim in token")
	}
	return sub, nil
}
