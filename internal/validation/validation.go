// Package validation wraps go-playground/validator so struct tag failures
// surface as apperr validation errors.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sudo-init-do/lexhub/internal/apperr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct validates v's tags. op names the calling operation in the error.
func Struct(op string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.KindValidation, op, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() == "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
	}
	return apperr.New(apperr.KindValidation, op, strings.Join(msgs, "; "))
}

// Echo adapts Struct to echo's Validator interface.
type Echo struct{}

func (Echo) Validate(i any) error {
	return Struct("http.bind", i)
}
