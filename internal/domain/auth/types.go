package auth

import "time"

// Config drives device token issuance.
type Config struct {
	Secret        string
	EnrollmentKey string
	TokenTTL      time.Duration
}

// TokenRequest exchanges the enrollment key for a device token.
type TokenRequest struct {
	EnrollmentKey string `json:"enrollmentKey"`
}

// TokenResponse returns the signed token.
type TokenResponse struct {
	Token     string    `json:"token"`
	DeviceID  string    `json:"deviceId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Claims are extracted from the JWT token.
type Claims struct {
	DeviceID  string
	TokenID   string
	ExpiresAt time.Time
}
