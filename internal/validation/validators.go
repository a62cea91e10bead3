package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/benvon/sage-coach/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Report json field names in validation errors
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	// Register custom validators for enums
	// These should never fail in normal operation, but log if they do
	for tag, fn := range map[string]validator.Func{
		"input_mode":    validateInputMode,
		"session_type":  validateSessionType,
		"life_domain":   validateLifeDomain,
		"message_role":  validateMessageRole,
		"iana_timezone": validateTimezone,
	} {
		if err := Validate.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("failed to register %s validator: %v", tag, err))
		}
	}
}

func validateInputMode(fl validator.FieldLevel) bool {
	switch models.InputMode(fl.Field().String()) {
	case models.InputModeText, models.InputModeVoice:
		return true
	default:
		return false
	}
}

func validateSessionType(fl validator.FieldLevel) bool {
	switch models.SessionType(fl.Field().String()) {
	case models.SessionTypeLifeMapping, models.SessionTypeWeeklyCheckin, models.SessionTypeAdHoc,
		models.SessionTypeOpenDay, models.SessionTypeCloseDay:
		return true
	default:
		return false
	}
}

func validateLifeDomain(fl validator.FieldLevel) bool {
	return models.LifeDomain(fl.Field().String()).IsValid()
}

func validateMessageRole(fl validator.FieldLevel) bool {
	switch models.MessageRole(fl.Field().String()) {
	case models.MessageRoleUser, models.MessageRoleAssistant:
		return true
	default:
		return false
	}
}

// validateTimezone accepts IANA names only; "Local" and the empty string are rejected
func validateTimezone(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" || name == "Local" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return strings.TrimSpace(sanitized.String())
}

// FieldError is the first failing field of a validated struct
type FieldError struct {
	Field string
	Tag   string
	Param string
}

func (e *FieldError) Error() string {
	return e.Message()
}

// Message renders a short human-readable description of the failure
func (e *FieldError) Message() string {
	switch e.Tag {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", e.Field, e.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", e.Field, e.Param)
	case "datetime":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", e.Field)
	default:
		return fmt.Sprintf("%s is invalid", e.Field)
	}
}

// Struct validates s and returns a *FieldError for the first failure
func Struct(s any) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &FieldError{Field: verrs[0].Field(), Tag: verrs[0].Tag(), Param: verrs[0].Param()}
	}
	return fmt.Errorf("validation failed: %w", err)
}
