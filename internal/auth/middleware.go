// Package auth resolves the learner behind each request.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/bandup/session-service/internal/config"
	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"
)

const (
	// LearnerIDKey is the gin context key holding the authenticated learner id.
	LearnerIDKey = "learner_id"

	LearnerHeader = "X-Learner-ID"
)

// TokenVerifier is satisfied by *casdoorsdk.Client.
type TokenVerifier interface {
	ParseJwtToken(token string) (*casdoorsdk.Claims, error)
}

// NewVerifier builds a Casdoor client, or returns nil when no endpoint is configured.
func NewVerifier(cfg config.CasdoorConfig) TokenVerifier {
	if cfg.Endpoint == "" {
		return nil
	}
	return casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Certificate,
		cfg.OrganizationName,
		cfg.ApplicationName,
	)
}

// Middleware requires a valid bearer token and stores the learner id in the context.
// With a nil verifier it trusts the X-Learner-ID header, which is only meant for development.
func Middleware(verifier TokenVerifier, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			learnerID := strings.TrimSpace(c.GetHeader(LearnerHeader))
			if learnerID == "" {
				abort(c, "Missing "+LearnerHeader+" header")
				return
			}
			c.Set(LearnerIDKey, learnerID)
			c.Next()
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, "Missing bearer token")
			return
		}

		claims, err := verifier.ParseJwtToken(token)
		if err != nil {
			logger.Warn("Rejected token", "path", c.Request.URL.Path, "error", err)
			abort(c, "Invalid token")
			return
		}

		learnerID := claims.User.Id
		if learnerID == "" {
			learnerID = claims.User.Owner + "/" + claims.User.Name
		}
		c.Set(LearnerIDKey, learnerID)
		c.Next()
	}
}

// LearnerID returns the id set by Middleware.
func LearnerID(c *gin.Context) string {
	return c.GetString(LearnerIDKey)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abort(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": message})
}
