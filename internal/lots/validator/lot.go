package validator

import (
	"errors"
	"fmt"
	"strings"

	"parksphere/pkg/logger"
	"parksphere/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type LotValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewLotValidator(log *logger.Logger) *LotValidator {
	return &LotValidator{
		validate: validator.New(),
		logger:   log,
	}
}

func (v *LotValidator) Validate(lot *model.Lot) error {
	if err := v.validate.Struct(lot); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}

	if lot.AvailableSlots < 0 || lot.AvailableSlots > lot.TotalSlots {
		return ValidationErrors{
			ValidationError{
				Field:   "AvailableSlots",
				Message: fmt.Sprintf("available_slots must be between 0 and total_slots (%d)", lot.TotalSlots),
			},
		}
	}

	return nil
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s characters", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "gte":
			message = fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
		case "lte":
			message = fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
