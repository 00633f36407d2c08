package middleware

import (
	"net/http"
	"strings"

	"github.com/UdarEdge/HoyPecamos-sub002/internal/apierror"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/ledger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ClaimsKey = "claims"

	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// JWTClaims are the custom claims embedded in every token.
type JWTClaims struct {
	UserID    string  `json:"user_id"`
	Username  string  `json:"username"`
	Rol       string  `json:"rol"`
	TillID    *string `json:"till_id,omitempty"`
	TokenType string  `json:"typ"`
	jwt.RegisteredClaims
}

// ParseToken validates signature and expiry of an HS256 token.
func ParseToken(tokenStr, secret string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// JWTAuth validates the Bearer access token on every protected route.
// EventSource clients cannot set headers, so ?access_token= is accepted too.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ""
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			tokenStr = strings.TrimPrefix(header, "Bearer ")
		} else if q := c.Query("access_token"); q != "" {
			tokenStr = q
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.WithCode("unauthenticated", "Autenticacion requerida"))
			return
		}

		claims, err := ParseToken(tokenStr, secret)
		if err != nil || claims.TokenType != TokenAccess {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.WithCode("unauthenticated", "Token invalido o expirado"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireRole rejects requests whose JWT role is not in the allowed list.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		claims, ok := c.MustGet(ClaimsKey).(*JWTClaims)
		if !ok || !allowed[claims.Rol] {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.WithCode("forbidden", "Permisos insuficientes"))
			return
		}
		c.Next()
	}
}

// RequireTill rejects operators pinned to another till. The till is read from
// the :till path parameter.
func RequireTill() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims != nil && claims.TillID != nil && *claims.TillID != c.Param("till") {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.WithCode("forbidden", "Operador asignado a otra caja"))
			return
		}
		c.Next()
	}
}

// GetClaims is a helper to retrieve typed claims from the Gin context.
func GetClaims(c *gin.Context) *JWTClaims {
	claims, _ := c.MustGet(ClaimsKey).(*JWTClaims)
	return claims
}

// Actor turns the authenticated operator into a ledger actor. A malformed
// user id yields uuid.Nil, which no role policy accepts.
func Actor(c *gin.Context) ledger.Actor {
	claims := GetClaims(c)
	if claims == nil {
		return ledger.Actor{}
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		id = uuid.Nil
	}
	return ledger.Actor{ID: id, Role: claims.Rol}
}
