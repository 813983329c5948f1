package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/escrow-backend/internal/http/response"
	"github.com/yungbote/escrow-backend/internal/platform/ctxutil"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

// RequireActor trusts the identity headers set by the gateway in front of the
// API and rejects requests without a valid user id.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := uuid.Parse(strings.TrimSpace(c.GetHeader(headerUserID)))
		if err != nil || userID == uuid.Nil {
			response.AbortError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid "+headerUserID))
			return
		}
		role := strings.ToLower(strings.TrimSpace(c.GetHeader(headerUserRole)))
		switch role {
		case "":
			role = ctxutil.RoleUser
		case ctxutil.RoleUser, ctxutil.RoleAdmin:
		default:
			response.AbortError(c, http.StatusUnauthorized, "unauthorized", errors.New("unknown role"))
			return
		}
		ctx := ctxutil.WithActor(c.Request.Context(), &ctxutil.Actor{UserID: userID, Role: role})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ctxutil.GetActor(c.Request.Context()).IsAdmin() {
			response.AbortError(c, http.StatusForbidden, "forbidden", errors.New("admin role required"))
			return
		}
		c.Next()
	}
}
