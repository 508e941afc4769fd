package auth

import (
	"fmt"
	"strings"
	"unicode"
)

// Validator checks login input before it is sent to the server.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateContact requires at least one of email and phone, each well formed
// when present.
func (v *Validator) ValidateContact(email, phone string) error {
	email, phone = strings.TrimSpace(email), strings.TrimSpace(phone)
	if email == "" && phone == "" {
		return InvalidContactErr
	}

	if email != "" {
		at := strings.Index(email, "@")
		if at < 1 || !strings.Contains(email[at+1:], ".") {
			return fmt.Errorf("%w: %q", InvalidEmailErr, email)
		}
	}

	if phone != "" {
		digits := 0
		for i, r := range phone {
			switch {
			case unicode.IsDigit(r):
				digits++
			case r == '+' && i == 0, r == ' ', r == '-':
			default:
				return fmt.Errorf("%w: %q", InvalidPhoneErr, phone)
			}
		}
		if digits < 6 {
			return fmt.Errorf("%w: %q", InvalidPhoneErr, phone)
		}
	}
	return nil
}

func (v *Validator) ValidateOTP(otp string) error {
	if strings.TrimSpace(otp) == "" {
		return InvalidOTPErr
	}
	return nil
}
