package render

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nkiryanov/peercash/internal/models"
)

func configureValidator(validate *validator.Validate) {
	_ = validate.RegisterValidation("denomination", validateDenomination)
	_ = validate.RegisterValidation("platform", validatePlatform)
	validate.RegisterTagNameFunc(useJSONTagNames)
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

func validateDenomination(fl validator.FieldLevel) bool {
	_, err := models.ParseDenomination(fl.Field().String())
	return err == nil
}

func validatePlatform(fl validator.FieldLevel) bool {
	_, err := models.ParsePlatform(fl.Field().String())
	return err == nil
}
