package controllers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/cppla/socialfeed/config"
	"github.com/cppla/socialfeed/errs"
	"github.com/cppla/socialfeed/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondServiceError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		body   string
	}{
		{errs.NotFound("post"), http.StatusNotFound, `"message":"post not found"`},
		{errs.Unauthenticated("nope"), http.StatusUnauthorized, `"code":40100`},
		{errs.Forbidden("not yours"), http.StatusForbidden, `"code":40300`},
		{errs.ErrSelfFollow, http.StatusBadRequest, `"code":40000`},
		{errs.Invalid("bad"), http.StatusBadRequest, `"message":"bad"`},
		{errors.New("db exploded"), http.StatusInternalServerError, `"message":"internal server error"`},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		ctx, _ := gin.CreateTestContext(w)
		ctx.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		respondServiceError(ctx, tc.err)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		assert.Contains(t, w.Body.String(), tc.body)
	}
}

func TestOAuthCallbackRejectsBadState(t *testing.T) {
	states := utils.NewStateStore(nil)
	a := NewAuthController(config.AppConfig{GitHubClientID: "id", GitHubClientSecret: "secret"}, nil, nil, nil, states)
	r := gin.New()
	r.GET("/oauth/:provider/login", a.OAuthRedirect)
	r.GET("/oauth/:provider/callback", a.OAuthCallback)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/oauth/github/callback")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":40005`)

	w = get("/oauth/github/callback?code=abc&state=forged")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":40006`)

	w = get("/oauth/github/login")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "github.com/login/oauth/authorize")

	w = get("/oauth/google/login")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":40004`)
}

func TestOperationType(t *testing.T) {
	cases := []struct {
		query, name, want string
	}{
		{`{ me { id } }`, "", "query"},
		{`query Q { me { id } }`, "", "query"},
		{"# leading comment\nmutation { logout }", "", "mutation"},
		{`query Q { me { id } } mutation M { logout }`, "M", "mutation"},
		{`query Q { me { id } } mutation M { logout }`, "Q", "query"},
		{`query Q { me { id } } mutation M { logout }`, "", "unknown"},
		{`query Q { me { id } }`, "Missing", "unknown"},
		{`{`, "", "unknown"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, operationType(tc.query, tc.name), tc.query)
	}
}
