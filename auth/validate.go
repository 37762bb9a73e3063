package auth

import (
	"net/mail"
	"regexp"
	"strings"

	"broker-calls/apperr"
)

var (
	hasDigit = regexp.MustCompile(`[0-9]`)
	hasUpper = regexp.MustCompile(`[A-Z]`)
)

// RegisterInput is the registration payload
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// normalizeEmail lower-cases and trims an address
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@"):], ".")
}

// Validate checks the registration rules and returns one entry per failing field
func (in RegisterInput) Validate() []apperr.FieldError {
	var fields []apperr.FieldError

	if !validEmail(normalizeEmail(in.Email)) {
		fields = append(fields, apperr.FieldError{Field: "email", Message: "Please provide a valid email"})
	}

	switch {
	case len(in.Password) < 6:
		fields = append(fields, apperr.FieldError{Field: "password", Message: "Password must be at least 6 characters long"})
	case !hasDigit.MatchString(in.Password):
		fields = append(fields, apperr.FieldError{Field: "password", Message: "Password must contain a number"})
	case !hasUpper.MatchString(in.Password):
		fields = append(fields, apperr.FieldError{Field: "password", Message: "Password must contain an uppercase letter"})
	}

	if strings.TrimSpace(in.Name) == "" {
		fields = append(fields, apperr.FieldError{Field: "name", Message: "Name is required"})
	}

	return fields
}
