package validation

import (
	"regexp"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the wire format for calendar dates (birth date).
const DateLayout = "2006-01-02"

// MinimumAge is the youngest age accepted at the birth date step.
const MinimumAge = 13

var (
	// Letters, spaces and the punctuation people put in names
	nameRegex = regexp.MustCompile(`^[\p{L} .'-]+$`)

	// E.164: leading +, country code, up to 15 digits total
	phoneRegex = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

	otpRegex = regexp.MustCompile(`^[0-9]{6}$`)
)

// New returns a validator with the custom tags registered.
func New() *validator.Validate {
	v := validator.New()
	RegisterValidators(v)
	return v
}

// RegisterValidators registers custom validators to the validator instance
func RegisterValidators(v *validator.Validate) {
	_ = v.RegisterValidation("valid_name", ValidName)
	_ = v.RegisterValidation("valid_phone", ValidPhone)
	_ = v.RegisterValidation("otp_code", OTPCode)
	_ = v.RegisterValidation("no_emoji", NoEmoji)
	_ = v.RegisterValidation("birth_date", BirthDate)
}

// ValidName rejects digits and most symbols.
func ValidName(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true // Optional, use required if needed
	}
	return nameRegex.MatchString(val)
}

// ValidPhone validates an E.164 phone number.
func ValidPhone(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true
	}
	return phoneRegex.MatchString(val)
}

// OTPCode accepts exactly six ASCII digits.
func OTPCode(fl validator.FieldLevel) bool {
	return otpRegex.MatchString(fl.Field().String())
}

// NoEmoji validates that a string does not contain emoji characters
func NoEmoji(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		if r > 0x1F000 {
			return false
		}
		if unicode.In(r, unicode.So, unicode.Sk) {
			return false
		}
	}
	return true
}

// BirthDate accepts a YYYY-MM-DD date at least MinimumAge years in the past.
func BirthDate(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true
	}
	t, err := time.Parse(DateLayout, val)
	if err != nil {
		return false
	}
	return !t.After(time.Now().UTC().AddDate(-MinimumAge, 0, 0))
}

// IsValidPhone is the non-struct form of the valid_phone rule.
func IsValidPhone(phone string) bool {
	return phoneRegex.MatchString(phone)
}
