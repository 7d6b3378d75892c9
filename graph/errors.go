package graph

import (
	"context"
	"errors"
	"strconv"

	graphql "github.com/graph-gophers/graphql-go"
	"go.uber.org/zap"

	"github.com/cppla/socialfeed/auth"
	"github.com/cppla/socialfeed/errs"
	"github.com/cppla/socialfeed/models"
	"github.com/cppla/socialfeed/utils"
)

// publicError turns err into what a client may see. Internal failures are
// logged with their cause and replaced by a generic message.
func publicError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	// the executor only reads extensions from the top-level error value
	var e *errs.Error
	if errors.As(err, &e) && e.Kind != errs.KindInternal {
		return e
	}
	fields := []zap.Field{zap.Error(err)}
	if id, ok := auth.UserID(ctx); ok {
		fields = append(fields, zap.Uint("viewer_id", id))
	}
	utils.Logger.Error("graphql resolver failed", fields...)
	return &errs.Error{Kind: errs.KindInternal, Message: errs.Public(err)}
}

// requireViewer returns the authenticated user or an UNAUTHENTICATED error.
func requireViewer(ctx context.Context) (*models.User, error) {
	if u := auth.GetUser(ctx); u != nil {
		return u, nil
	}
	return nil, errs.Unauthenticated("you must be logged in")
}

func parseID(id graphql.ID) (uint, error) {
	n, err := strconv.ParseUint(string(id), 10, 64)
	if err != nil || n == 0 {
		return 0, errs.Invalid("invalid id: " + string(id))
	}
	return uint(n), nil
}

func toID(id uint) graphql.ID {
	return graphql.ID(strconv.FormatUint(uint64(id), 10))
}

func intArg(v *int32, def int) int {
	if v == nil {
		return def
	}
	return int(*v)
}
