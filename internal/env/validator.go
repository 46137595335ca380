package env

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vibecodingbible/edge-guard/internal/sweeper"
)

// Validator wraps go-playground/validator with the custom tags the
// environment uses.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.RegisterValidation("cron", validateCronExpression); err != nil {
		panic("env: failed to register cron validation: " + err.Error())
	}

	return &Validator{validate: v}
}

// Check validates s and flattens field errors into one readable error.
func (v *Validator) Check(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
	}

	return fmt.Errorf("invalid environment: %s", strings.Join(msgs, "; "))
}

// validateCronExpression accepts exactly what the sweeper can schedule.
func validateCronExpression(fl validator.FieldLevel) bool {
	_, err := sweeper.ParseSchedule(fl.Field().String())
	return err == nil
}
