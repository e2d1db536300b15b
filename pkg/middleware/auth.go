package middleware

import (
	stderrors "errors"

	"cooperative-ai/backend/pkg/errors"
	"cooperative-ai/backend/pkg/jwt"
	"cooperative-ai/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// DefaultCookieName is the cookie the frontend stores the signed token in
const DefaultCookieName = "auth_token"

// CookieAuth verifies the signed token cookie and attaches the caller's
// jwt.Identity to the request context. Any failure aborts with 401.
func CookieAuth(tokens *jwt.Service, signer *jwt.CookieSigner, cookieName string) gin.HandlerFunc {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}

	return func(c *gin.Context) {
		raw, err := c.Cookie(cookieName)
		if err != nil || raw == "" {
			c.Error(errors.NewUnauthorizedError("TOKEN_MISSING", errors.MsgTokenMissing))
			c.Abort()
			return
		}

		log := logger.FromContext(c.Request.Context())

		token, err := signer.Unsign(raw)
		if err != nil {
			log.Warn("Rejected cookie with bad signature", "error", err.Error())
			c.Error(errors.NewUnauthorizedError("INVALID_SIGNATURE", errors.MsgTokenInvalid))
			c.Abort()
			return
		}

		claims, err := tokens.ValidateToken(token)
		if err != nil {
			log.Warn("Invalid token", "error", err.Error())
			if stderrors.Is(err, jwt.ErrExpiredToken) {
				c.Error(errors.NewUnauthorizedError("TOKEN_EXPIRED", errors.MsgTokenExpired))
			} else {
				c.Error(errors.NewUnauthorizedError("INVALID_TOKEN", errors.MsgTokenInvalid))
			}
			c.Abort()
			return
		}

		identity := jwt.Identity{UserID: claims.UserID}
		c.Request = c.Request.WithContext(jwt.WithIdentity(c.Request.Context(), identity))
		c.Set("userId", identity.UserID)

		c.Next()
	}
}
