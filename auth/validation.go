package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jrsteele09/go-auth-client/accounts"
)

// Validator checks user input before it is sent to the backend.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidateLoginRequest checks the login form fields
func (v *Validator) ValidateLoginRequest(req accounts.LoginRequest) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid login request: %w", err)
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fieldMessage(fe))
	}
	return errors.New(strings.Join(messages, "; "))
}

// ValidateAccessToken checks that a token at least has the three JWT segments
func (v *Validator) ValidateAccessToken(token string) error {
	if token == "" {
		return fmt.Errorf("access token is required")
	}
	if err := v.validate.Var(token, "jwt"); err != nil {
		return fmt.Errorf("access token must be a valid JWT")
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "invalid email format"
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
