package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	contextKeyUserKey = "user_key"
	contextKeyScopes  = "scopes"
	tokenQueryParam   = "token"
	issuer            = "notification-hub"
)

// ScopeInternal marks tokens of trusted backend callers. Creating
// notifications and listing live connections require it.
const ScopeInternal = "notifications:internal"

var ErrMissingUserKey = errors.New("token carries no user key")

// Claims identify the user a push connection or API call belongs to.
type Claims struct {
	jwt.RegisteredClaims
	UserKey string   `json:"user_key"`
	Scopes  []string `json:"scopes,omitempty"`
}

// HasScope reports whether the token was granted scope.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// GenerateToken signs an HS256 token for userKey valid for ttl.
func GenerateToken(secret, userKey string, ttl time.Duration, scopes ...string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   userKey,
		},
		UserKey: userKey,
		Scopes:  scopes,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates tokenString and returns its claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.UserKey == "" {
		return nil, ErrMissingUserKey
	}
	return claims, nil
}

// JWTAuth resolves the caller's user key from a Bearer token. Browsers'
// EventSource cannot set headers, so the token is also accepted as the
// "token" query parameter.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authorization token is required",
			})
			return
		}

		claims, err := ParseToken(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token",
			})
			return
		}

		c.Set(contextKeyUserKey, claims.UserKey)
		c.Set(contextKeyScopes, claims.Scopes)
		c.Next()
	}
}

// RequireScope rejects callers whose token, as resolved by JWTAuth, was not
// granted scope. It must run after JWTAuth.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		scopes, _ := c.Get(contextKeyScopes)
		granted, _ := scopes.([]string)
		if !slices.Contains(granted, scope) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "insufficient scope",
			})
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return c.Query(tokenQueryParam)
}

// UserKey returns the user key set by JWTAuth, or "".
func UserKey(c *gin.Context) string {
	if v, ok := c.Get(contextKeyUserKey); ok {
		if key, ok := v.(string); ok {
			return key
		}
	}
	return ""
}
