package handlers

import "time"

// PasswordChangeRequest is the body of POST /api/v1/auth/password.
type PasswordChangeRequest struct {
	// Method is current_password or emailed_code.
	Method string `json:"method"`
	// Proof holds the current password or the emailed code.
	Proof       string `json:"proof"`
	NewPassword string `json:"newPassword"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
