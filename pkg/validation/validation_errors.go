package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldLabels maps struct field names to user-facing labels
var FieldLabels = map[string]string{
	"Phone":              "Phone number",
	"Code":               "Verification code",
	"RefreshToken":       "Refresh token",
	"FullName":           "Full name",
	"AvatarURL":          "Avatar",
	"PermissionsGranted": "Permissions",
	"BirthDate":          "Birth date",
	"Path":               "Path",
	"Preferences":        "Preferences",
	"Hobbies":            "Hobbies",
	"Question":           "Question",
	"Options":            "Options",
	"OptionID":           "Option",
}

// FieldError is the inline, field-level message returned to the client.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormatValidationErrors converts validator.ValidationErrors to field messages
func FormatValidationErrors(err error) []FieldError {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []FieldError{{Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(validationErrors))
	for _, e := range validationErrors {
		out = append(out, FieldError{
			Field:   jsonName(e.Field()),
			Message: formatSingleError(e),
		})
	}
	return out
}

func formatSingleError(e validator.FieldError) string {
	label := getFieldLabel(e.Field())
	param := e.Param()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", label)
	case "min":
		if e.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", label, param)
		}
		return fmt.Sprintf("%s must have at least %s items", label, param)
	case "max":
		if e.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters", label, param)
		}
		return fmt.Sprintf("%s must have at most %s items", label, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(param, " ", ", "))
	case "valid_name":
		return fmt.Sprintf("%s may only contain letters, spaces and . ' -", label)
	case "valid_phone":
		return fmt.Sprintf("%s must be in international format, e.g. +15551234567", label)
	case "otp_code":
		return fmt.Sprintf("%s must be 6 digits", label)
	case "no_emoji":
		return fmt.Sprintf("%s must not contain emoji", label)
	case "birth_date":
		return fmt.Sprintf("%s must be a YYYY-MM-DD date at least %d years ago", label, MinimumAge)
	case "dive", "unique":
		return fmt.Sprintf("%s contains an invalid or duplicate entry", label)
	default:
		return fmt.Sprintf("%s is invalid (%s)", label, e.Tag())
	}
}

func getFieldLabel(fieldName string) string {
	if label, ok := FieldLabels[fieldName]; ok {
		return label
	}
	return fieldName
}

// jsonName turns FullName into full_name to match request bodies.
func jsonName(s string) string {
	var result strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				result.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		result.WriteRune(r)
	}
	return result.String()
}
