package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"order-console/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// PrincipalKey is the gin context key holding the authenticated subject
const PrincipalKey = "principal"

// Authenticator checks bearer tokens issued by the external auth service
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator creates a new HS256 token checker. An empty secret
// disables authentication, which is only meant for local development.
func NewAuthenticator(secret, issuer string) *Authenticator {
	if secret == "" {
		util.GetLogger().Warn("JWT_SECRET is empty, API authentication disabled")
	}
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Principal validates a raw token and returns its subject
func (a *Authenticator) Principal(tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// Middleware rejects requests without a valid bearer token
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(a.secret) == 0 {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			return
		}

		principal, err := a.Principal(raw)
		if err != nil {
			util.GetLogger().Debug("Rejected token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(PrincipalKey, principal)
		c.Next()
	}
}
