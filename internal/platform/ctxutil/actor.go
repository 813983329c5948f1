package ctxutil

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type actorKey struct{}

// Actor is the caller identity asserted by the upstream gateway.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

func (a *Actor) IsAdmin() bool {
	return a != nil && strings.EqualFold(a.Role, RoleAdmin)
}

func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func GetActor(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	if a, ok := ctx.Value(actorKey{}).(*Actor); ok {
		return a
	}
	return nil
}
