package usecase

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NormalizePhone strips every non-digit character.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// phoneForValidation returns the normalized phone, or the trimmed raw
// value when it contains no digits at all so the format rule still fires.
func phoneForValidation(raw string) string {
	if n := NormalizePhone(raw); n != "" {
		return n
	}
	return strings.TrimSpace(raw)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isStrongPassword requires at least one uppercase, one lowercase and one digit.
func isStrongPassword(s string) bool {
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// newValidator builds a validator that reports json field names and knows
// the phone, password and digits rules.
func newValidator(phoneDigits int) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		return isDigits(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return isDigits(s) && len(s) == phoneDigits
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return isStrongPassword(fl.Field().String())
	})
	return v
}

// validateStruct runs the validator and folds every violation into a ValidationError.
func (u *authUsecase) validateStruct(s any) error {
	err := u.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate input: %w", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = u.messageFor(fe)
	}
	return &ValidationError{Fields: fields}
}

func (u *authUsecase) messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return "email or phone is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters long", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters long", fe.Param())
	case "digits":
		return "must contain digits only"
	case "phone":
		return fmt.Sprintf("must contain exactly %d digits", u.policy.PhoneDigits)
	case "strongpassword":
		return "must contain at least one uppercase letter, one lowercase letter and one digit"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}

// registerFields is the validated shape of a registration request,
// holding already trimmed and normalized values.
type registerFields struct {
	Email      string `json:"email" validate:"required_without=Phone,omitempty,email"`
	Phone      string `json:"phone" validate:"required_without=Email,omitempty,phone"`
	Password   string `json:"password" validate:"required,min=8,strongpassword"`
	FirstName  string `json:"firstName" validate:"required,min=2"`
	LastName   string `json:"lastName" validate:"omitempty,min=2"`
	AuthMethod string `json:"authMethod" validate:"required,oneof=email phone"`
}

type verifyFields struct {
	AccountID string `json:"accountId" validate:"required"`
	Code      string `json:"code" validate:"required,len=6,digits"`
}

type loginFields struct {
	Email    string `json:"email" validate:"required_without=Phone,omitempty,email"`
	Phone    string `json:"phone" validate:"required_without=Email,omitempty,digits"`
	Password string `json:"password" validate:"required"`
}

type updatePasswordFields struct {
	Phone       string `json:"phone" validate:"required,digits"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

type resetCodeFields struct {
	Code string `json:"code" validate:"required,len=6,digits"`
}
