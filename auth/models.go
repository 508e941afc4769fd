package auth

import "time"

// Endpoints relative to the API base URL.
const (
	sendOTPPath   = "api/v1/auth/send-otp/"
	verifyOTPPath = "api/v1/auth/verify-otp/"
	logoutPath    = "api/v1/auth/logout/"
)

// SendOTPRequest carries the contact the code is delivered to. The server
// accepts either field; an unused one is sent empty.
type SendOTPRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type SendOTPResponse struct {
	Detail    string    `json:"detail"`
	ExpiresAt time.Time `json:"expires_at"`
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}
