package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/consult-desk/internal/auth"
	"github.com/suPer8Hu/consult-desk/internal/common"
)

const (
	UserIDKey   = "user_id"
	IdentityKey = "identity"

	accessTokenCookie = "accessToken"
)

// AuthRequired accepts a bearer token, the accessToken cookie set by the web
// client, or a ?token= query parameter (browser WebSocket handshakes cannot
// set headers).
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := auth.ParseJWT(tokenFromRequest(c), secret)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrNoToken):
				common.Abort(c, http.StatusUnauthorized, 40101, "unauthorized")
			case errors.Is(err, auth.ErrTokenExpired):
				common.Abort(c, http.StatusUnauthorized, 40102, "access token expired")
			default:
				common.Abort(c, http.StatusUnauthorized, 40103, "invalid access token")
			}
			return
		}
		c.Set(UserIDKey, id.UserID)
		c.Set(IdentityKey, id)
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	if v, err := c.Cookie(accessTokenCookie); err == nil && v != "" {
		return v
	}
	return c.Query("token")
}

func IdentityFromContext(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}
