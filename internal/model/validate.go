package model

import (
	"fmt"
	"net/mail"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Add appends a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// ValidateContract checks a Contract for constraint violations before it is
// first persisted.
func ValidateContract(c *Contract) error {
	var ve ValidationError

	title := strings.TrimSpace(c.Title)
	if title == "" {
		ve.Add("title", "is required")
	} else if len([]rune(title)) > 300 {
		ve.Add("title", "must be 300 characters or fewer")
	}

	if strings.TrimSpace(c.ClientName) == "" {
		ve.Add("client_name", "is required")
	}

	if c.TotalAmount < 0 {
		ve.Add("total_amount", fmt.Sprintf("must not be negative, got %.2f", c.TotalAmount))
	}

	if len(c.Currency) != 3 || strings.ToUpper(c.Currency) != c.Currency {
		ve.Add("currency", fmt.Sprintf("must be a 3-letter ISO code, got %q", c.Currency))
	}

	if !c.Status.IsValid() {
		ve.Add("status", fmt.Sprintf("invalid value %q", c.Status))
	}

	if strings.TrimSpace(c.DocumentBody) == "" {
		ve.Add("document_body", "is required")
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// SignatureInput is what a signer submits through the public signing surface.
type SignatureInput struct {
	Name      string `json:"signer_name"`
	Email     string `json:"signer_email"`
	Title     string `json:"signer_title,omitempty"`
	ImageData string `json:"signature_image"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// ValidateSignatureInput checks the signer identity fields and that an image
// was supplied. Ink detection is done separately by the caller.
func ValidateSignatureInput(in *SignatureInput) *ValidationError {
	var ve ValidationError

	name := strings.TrimSpace(in.Name)
	if name == "" {
		ve.Add("signer_name", "is required")
	} else if len([]rune(name)) > 200 {
		ve.Add("signer_name", "must be 200 characters or fewer")
	}

	email := strings.TrimSpace(in.Email)
	if email == "" {
		ve.Add("signer_email", "is required")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		ve.Add("signer_email", "is not a valid email address")
	}

	if len([]rune(in.Title)) > 200 {
		ve.Add("signer_title", "must be 200 characters or fewer")
	}

	if strings.TrimSpace(in.ImageData) == "" {
		ve.Add("signature_image", "is required")
	}

	return &ve
}
