package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/estate/internal/pkg/errcode"
	"github.com/xxxsen/estate/internal/pkg/jwt"
	"github.com/xxxsen/estate/internal/pkg/response"
	"github.com/xxxsen/estate/internal/tokenstore"
)

const (
	ContextUserIDKey    = "user_id"
	ContextUserEmailKey = "user_email"
	ContextUserRoleKey  = "user_role"
	ContextTokenIDKey   = "token_id"
	ContextTokenExpKey  = "token_exp"
)

func JWTAuth(secret []byte, blacklist tokenstore.Blacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, errcode.ErrUnauthorized, "missing authorization")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, errcode.ErrUnauthorized, "invalid authorization")
			c.Abort()
			return
		}
		claims, err := jwt.ParseToken(strings.TrimSpace(parts[1]), secret)
		if err != nil {
			response.Error(c, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		if blacklist != nil {
			revoked, err := blacklist.IsRevoked(c.Request.Context(), claims.TokenID())
			if err != nil {
				logutil.GetLogger(c.Request.Context()).Error("check token blacklist failed", zap.Error(err))
				response.Error(c, errcode.ErrInternal, "internal error")
				c.Abort()
				return
			}
			if revoked {
				response.Error(c, errcode.ErrUnauthorized, "token revoked")
				c.Abort()
				return
			}
		}
		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextUserRoleKey, claims.Role)
		c.Set(ContextTokenIDKey, claims.TokenID())
		c.Set(ContextTokenExpKey, claims.ExpiresTime())
		if claims.Email != "" {
			c.Set(ContextUserEmailKey, claims.Email)
		}
		c.Next()
	}
}

// RequireRole must run after JWTAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role := c.GetString(ContextUserRoleKey)
		if _, ok := allowed[role]; !ok {
			response.Error(c, errcode.ErrForbidden, "forbidden")
			c.Abort()
			return
		}
		c.Next()
	}
}
