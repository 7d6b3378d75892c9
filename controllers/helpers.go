package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/socialfeed/errs"
	"github.com/cppla/socialfeed/models"
	"github.com/cppla/socialfeed/services"
	"github.com/cppla/socialfeed/utils"
)

// respondServiceError maps an errs kind onto an HTTP status and error code.
func respondServiceError(ctx *gin.Context, err error) {
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		utils.Error(ctx, http.StatusNotFound, 40400, errs.Public(err))
	case errs.KindUnauthenticated:
		utils.Error(ctx, http.StatusUnauthorized, 40100, errs.Public(err))
	case errs.KindForbidden:
		utils.Error(ctx, http.StatusForbidden, 40300, errs.Public(err))
	case errs.KindValidation, errs.KindSelfFollow, errs.KindAlreadyFollowing, errs.KindNotFollowing:
		utils.Error(ctx, http.StatusBadRequest, 40000, errs.Public(err))
	default:
		utils.Sugar.Errorw("request failed", "path", ctx.FullPath(), "error", err)
		utils.Error(ctx, http.StatusInternalServerError, 50000, errs.Public(err))
	}
}

func parseUintParam(ctx *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(ctx.Param(name)), 10, 64)
	if err != nil || n == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid "+name)
		return 0, false
	}
	return uint(n), true
}

func queryInt(ctx *gin.Context, name string, def int) int {
	if v := strings.TrimSpace(ctx.Query(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func sanitizeUserResponse(user models.User) gin.H {
	return gin.H{
		"id":           user.ID,
		"username":     user.Username,
		"display_name": user.DisplayName,
		"bio":          user.Bio,
		"avatar":       user.Avatar,
		"created_at":   user.CreatedAt,
	}
}

func userResponse(p *services.AuthPayload) gin.H {
	return sanitizeUserResponse(*p.User)
}
