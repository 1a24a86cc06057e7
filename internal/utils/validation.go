package contextutils

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// IsValidUsername accepts 1-80 characters without whitespace
func IsValidUsername(username string) bool {
	if validate.Var(username, "required,max=80") != nil {
		return false
	}
	return strings.IndexFunc(username, unicode.IsSpace) < 0
}

// ValidateStruct runs `validate` tags on v and converts failures into ErrValidationFailed
// naming the offending fields.
func ValidateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return WrapError(ErrValidationFailed, err.Error())
	}

	fields := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
	}
	return WrapErrorf(ErrValidationFailed, "invalid fields: %s", strings.Join(fields, ", "))
}
