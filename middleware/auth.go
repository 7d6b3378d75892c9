package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/socialfeed/auth"
	"github.com/cppla/socialfeed/services"
	"github.com/cppla/socialfeed/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// ContextTokenKey stores the raw bearer token.
	ContextTokenKey = "token"
)

// Authenticator resolves bearer tokens into users.
type Authenticator struct {
	tokens    *utils.TokenManager
	blacklist *utils.TokenBlacklist
	users     *services.UserService
}

func NewAuthenticator(tokens *utils.TokenManager, blacklist *utils.TokenBlacklist, users *services.UserService) *Authenticator {
	return &Authenticator{tokens: tokens, blacklist: blacklist, users: users}
}

type authFailure struct {
	code int
	msg  string
}

// authenticate validates the Authorization header. A nil failure with a nil
// claims result means no header was sent.
func (a *Authenticator) authenticate(ctx *gin.Context) (*utils.Claims, string, *authFailure) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return nil, "", nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, "", &authFailure{40102, "invalid authorization header format"}
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return nil, "", &authFailure{40103, "empty bearer token"}
	}

	if a.blacklist != nil && a.blacklist.Contains(tokenString) {
		return nil, "", &authFailure{40104, "token revoked"}
	}

	claims, err := a.tokens.ParseToken(tokenString)
	if err != nil {
		return nil, "", &authFailure{40105, "invalid token"}
	}
	return claims, tokenString, nil
}

// bind loads the token's user and stores it on both the gin and request contexts.
func (a *Authenticator) bind(ctx *gin.Context, claims *utils.Claims, token string) bool {
	user, err := a.users.ByID(ctx.Request.Context(), claims.UserID)
	if err != nil {
		utils.Logger.Debug("token refers to unknown user", zap.Uint("user_id", claims.UserID), zap.Error(err))
		return false
	}
	ctx.Set(ContextUserIDKey, user.ID)
	ctx.Set(ContextUsernameKey, user.Username)
	ctx.Set(ContextTokenKey, token)
	reqCtx := auth.SetUser(ctx.Request.Context(), user)
	reqCtx = auth.SetToken(reqCtx, token)
	ctx.Request = ctx.Request.WithContext(reqCtx)
	return true
}

// OptionalAuth attaches the viewer when a valid token is present. Requests
// without one, or with an invalid one, continue anonymously.
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, token, failure := a.authenticate(ctx)
		if failure != nil {
			utils.Logger.Debug("ignoring bearer token", zap.String("reason", failure.msg))
		}
		if claims != nil {
			a.bind(ctx, claims, token)
		}
		ctx.Next()
	}
}

// AuthRequired ensures the request is authenticated via JWT.
func (a *Authenticator) AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, token, failure := a.authenticate(ctx)
		if failure == nil && claims == nil {
			failure = &authFailure{40101, "authorization header missing"}
		}
		if failure != nil {
			utils.Error(ctx, http.StatusUnauthorized, failure.code, failure.msg)
			ctx.Abort()
			return
		}
		if !a.bind(ctx, claims, token) {
			utils.Error(ctx, http.StatusUnauthorized, 40106, "user no longer exists")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
