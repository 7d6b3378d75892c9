package auth

import (
	"context"

	"github.com/cppla/socialfeed/models"
)

const (
	userKey  privateKey = "user"
	tokenKey privateKey = "token"
)

type privateKey string

// SetUser stores the authenticated viewer on the context.
func SetUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetUser returns the authenticated viewer, or nil for anonymous requests.
func GetUser(ctx context.Context) *models.User {
	if temp := ctx.Value(userKey); temp != nil {
		if user, ok := temp.(*models.User); ok {
			return user
		}
	}
	return nil
}

// UserID returns the viewer id and whether a viewer is present.
func UserID(ctx context.Context) (uint, bool) {
	if u := GetUser(ctx); u != nil {
		return u.ID, true
	}
	return 0, false
}

func SetToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

func GetToken(ctx context.Context) string {
	if v, ok := ctx.Value(tokenKey).(string); ok {
		return v
	}
	return ""
}
