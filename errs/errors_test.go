package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelMatching(t *testing.T) {
	err := fmt.Errorf("follow: %w", NotFound("user"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "user not found", Public(err))
}

func TestInternalIsHidden(t *testing.T) {
	err := Internal("load feed", errors.New("dial tcp: refused"))
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "internal server error", Public(err))
	assert.Contains(t, err.Error(), "dial tcp")

	plain := errors.New("boom")
	assert.Equal(t, KindInternal, KindOf(plain))
	assert.Equal(t, "internal server error", Public(plain))
}

func TestExtensions(t *testing.T) {
	assert.Equal(t, map[string]interface{}{"code": "SELF_FOLLOW"}, ErrSelfFollow.Extensions())
	assert.Equal(t, "BAD_USER_INPUT", Invalid("x").Extensions()["code"])
}

func TestFromValidation(t *testing.T) {
	type input struct {
		Username string `validate:"required,min=3"`
		Email    string `validate:"required,email"`
	}
	err := validator.New().Struct(input{Username: "ab", Email: "nope"})
	require.Error(t, err)

	converted := FromValidation(err)
	assert.True(t, errors.Is(converted, ErrValidation))
	assert.Equal(t, "username must be at least 3 characters; email must be a valid email address", Public(converted))

	other := errors.New("unrelated")
	assert.Same(t, other, FromValidation(other))
}
