package model

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\d{10}$`)
)

// CustomerDetails identifies the purchaser. Values built by NewCustomerDetails are valid.
type CustomerDetails struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// NewCustomerDetails trims and validates raw input. The error, if any, is ValidationErrors.
func NewCustomerDetails(name, email, phone string) (CustomerDetails, error) {
	c := CustomerDetails{
		Name:  strings.TrimSpace(name),
		Email: strings.TrimSpace(email),
		Phone: strings.TrimSpace(phone),
	}
	if err := c.Validate(); err != nil {
		return CustomerDetails{}, err
	}
	return c, nil
}

func (c CustomerDetails) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Reason: "name is required"})
	}
	if !emailPattern.MatchString(c.Email) {
		errs = append(errs, FieldError{Field: "email", Reason: "enter a valid email address"})
	}
	if !phonePattern.MatchString(c.Phone) {
		errs = append(errs, FieldError{Field: "phone", Reason: "phone must be exactly 10 digits"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
