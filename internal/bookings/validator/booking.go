package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"parksphere/pkg/logger"
	"parksphere/pkg/model"

	"github.com/go-playground/validator/v10"
)

const (
	MsgAllFieldsRequired = "All fields are required: lot_id, requester_id, date, start_time, end_time"
	MsgPastDate          = "Cannot book for a past date"
	MsgStartAfterEnd     = "Start time must be before end time"
	MsgMaxDuration       = "Maximum booking duration is %d hours"
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

// RuleError is a request that is well formed but breaks a booking rule.
// Its message is shown to the caller as is.
type RuleError struct {
	Message string
}

func (e *RuleError) Error() string {
	return e.Message
}

// Window is the resolved time range of a booking request.
type Window struct {
	Start         time.Time
	End           time.Time
	DurationHours float64
}

type BookingValidator struct {
	validate        *validator.Validate
	logger          *logger.Logger
	location        *time.Location
	maxBookingHours int
}

// NewBookingValidator resolves dates and clock times in loc. A nil loc means
// the server's local time zone.
func NewBookingValidator(log *logger.Logger, maxBookingHours int, loc *time.Location) *BookingValidator {
	if loc == nil {
		loc = time.Local
	}
	return &BookingValidator{
		validate:        validator.New(),
		logger:          log,
		location:        loc,
		maxBookingHours: maxBookingHours,
	}
}

// Validate checks req against now and returns its window. Checks run in a
// fixed order and the first failure is returned: required fields, formats,
// past date, start before end, maximum duration.
func (v *BookingValidator) Validate(req *model.BookingRequest, now time.Time) (*Window, error) {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return nil, err
		}
		for _, fe := range validationErrs {
			if fe.Tag() == "required" {
				return nil, &RuleError{Message: MsgAllFieldsRequired}
			}
		}
		return nil, translateValidationErrors(validationErrs)
	}

	day, err := time.ParseInLocation(model.DateLayout, req.Date, v.location)
	if err != nil {
		return nil, ValidationErrors{{Field: "Date", Message: "Date must be in YYYY-MM-DD format"}}
	}

	localNow := now.In(v.location)
	today := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, v.location)
	if day.Before(today) {
		return nil, &RuleError{Message: MsgPastDate}
	}

	startMin, err := clockMinutes(req.StartTime)
	if err != nil {
		return nil, ValidationErrors{{Field: "StartTime", Message: "StartTime must be in HH:MM format"}}
	}
	endMin, err := clockMinutes(req.EndTime)
	if err != nil {
		return nil, ValidationErrors{{Field: "EndTime", Message: "EndTime must be in HH:MM format"}}
	}
	if startMin >= endMin {
		return nil, &RuleError{Message: MsgStartAfterEnd}
	}

	// Wall-clock hours, independent of DST transitions on the day.
	duration := float64(endMin-startMin) / 60
	if duration > float64(v.maxBookingHours) {
		return nil, &RuleError{Message: fmt.Sprintf(MsgMaxDuration, v.maxBookingHours)}
	}

	start, err := v.At(req.Date, req.StartTime)
	if err != nil {
		return nil, ValidationErrors{{Field: "StartTime", Message: "StartTime must be in HH:MM format"}}
	}
	end, err := v.At(req.Date, req.EndTime)
	if err != nil {
		return nil, ValidationErrors{{Field: "EndTime", Message: "EndTime must be in HH:MM format"}}
	}

	return &Window{Start: start, End: end, DurationHours: duration}, nil
}

// At resolves a stored date and "HH:MM" clock to an instant.
func (v *BookingValidator) At(date, clock string) (time.Time, error) {
	return time.ParseInLocation(model.DateLayout+" "+model.TimeLayout, date+" "+clock, v.location)
}

// clockMinutes returns the minutes since midnight of an "HH:MM" clock.
func clockMinutes(clock string) (int, error) {
	t, err := time.Parse(model.TimeLayout, clock)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "datetime":
			switch err.Param() {
			case model.DateLayout:
				message = fmt.Sprintf("%s must be in YYYY-MM-DD format", err.Field())
			case model.TimeLayout:
				message = fmt.Sprintf("%s must be in HH:MM format", err.Field())
			}
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
