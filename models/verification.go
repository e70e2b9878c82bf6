package models

// VerificationStatus is the successful outcome of a verify call
type VerificationStatus string

const (
	// StatusVerified means this call performed the transition
	StatusVerified VerificationStatus = "verified"
	// StatusAlreadyVerified means an earlier call performed the transition
	StatusAlreadyVerified VerificationStatus = "already_verified"
)

// VerifyRequest is the body accepted by the verify endpoint
type VerifyRequest struct {
	Token          string `json:"token" validate:"required,max=256"`
	RegistrationID string `json:"registrationId,omitempty" validate:"omitempty,len=24,hexadecimal"`
}

// VerificationResult is returned for both verified and already verified outcomes
type VerificationResult struct {
	Status        VerificationStatus `json:"status"`
	NewlyVerified bool               `json:"newlyVerified"`
	Registration  Registration       `json:"registration"`
}
