package services

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/cppla/socialfeed/errs"
)

var (
	validate        *validator.Validate
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("alphanumunderscore", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
}

// validateStruct runs struct tag validation and converts failures into validation errors.
func validateStruct(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return errs.FromValidation(err)
	}
	return nil
}
