package auth

import "errors"

var (
	InvalidContactErr = errors.New("email or phone is required")
	InvalidEmailErr   = errors.New("invalid email format")
	InvalidPhoneErr   = errors.New("invalid phone format")
	InvalidOTPErr     = errors.New("otp is required")
)
