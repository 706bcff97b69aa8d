package middleware

import (
	"crypto/subtle"
	"errors"
	"strings"

	"datalens/internal/apierr"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const identityKey = "identity"

// UserIDHeader lets a service-role caller act on behalf of a user.
const UserIDHeader = "X-User-Id"

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID  *uuid.UUID
	Service bool
}

type AuthConfig struct {
	JWTSecret      string
	ServiceRoleKey string
}

// RequireUser accepts only user JWTs.
func RequireUser(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortAuth(c, apierr.Unauthorized(errors.New("missing bearer token")))
			return
		}
		userID, err := ParseUserToken(token, cfg.JWTSecret)
		if err != nil {
			abortAuth(c, apierr.Unauthorized(err))
			return
		}
		c.Set(identityKey, Identity{UserID: &userID})
		c.Next()
	}
}

// RequireUserOrService accepts a user JWT or the service-role key. A service caller
// may name a user through the X-User-Id header.
func RequireUserOrService(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortAuth(c, apierr.Unauthorized(errors.New("missing bearer token")))
			return
		}

		if cfg.ServiceRoleKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(cfg.ServiceRoleKey)) == 1 {
			identity := Identity{Service: true}
			if raw := strings.TrimSpace(c.GetHeader(UserIDHeader)); raw != "" {
				userID, err := uuid.Parse(raw)
				if err != nil {
					abortAuth(c, apierr.Validation(errors.New("x-user-id must be a UUID")))
					return
				}
				identity.UserID = &userID
			}
			c.Set(identityKey, identity)
			c.Next()
			return
		}

		userID, err := ParseUserToken(token, cfg.JWTSecret)
		if err != nil {
			abortAuth(c, apierr.Unauthorized(err))
			return
		}
		c.Set(identityKey, Identity{UserID: &userID})
		c.Next()
	}
}

// ParseUserToken validates an HS256 token and returns its subject as a user id.
func ParseUserToken(tokenString, secret string) (uuid.UUID, error) {
	if secret == "" {
		return uuid.Nil, errors.New("user tokens are not accepted")
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return uuid.Nil, errors.New("invalid token")
	}
	if !token.Valid {
		return uuid.Nil, errors.New("invalid token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, errors.New("invalid token subject")
	}
	return userID, nil
}

// GetIdentity returns the caller set by one of the auth middlewares.
func GetIdentity(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	identity, ok := v.(Identity)
	return identity, ok
}

// SetIdentity attaches a caller to the request; used by tests and internal routes.
func SetIdentity(c *gin.Context, identity Identity) {
	c.Set(identityKey, identity)
}

func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

func abortAuth(c *gin.Context, err *apierr.Error) {
	c.AbortWithStatusJSON(err.Status, gin.H{"error": err.Error(), "code": err.Code})
}

