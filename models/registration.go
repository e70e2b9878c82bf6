package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Registration holds the structure for the registrations collection in mongo.
// Verified, VerifiedAt and VerifiedBy are set together, once, by the verification engine.
type Registration struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name       string             `json:"name" bson:"name"`
	Email      string             `json:"email" bson:"email"`
	Phone      string             `json:"phone,omitempty" bson:"phone,omitempty"`
	EventID    string             `json:"eventId" bson:"eventId"`
	TimeSlot   string             `json:"timeSlot" bson:"timeSlot"`
	Category   string             `json:"category" bson:"category"`
	Token      string             `json:"token" bson:"token" index:"unique"`
	Verified   bool               `json:"verified" bson:"verified"`
	VerifiedAt *time.Time         `json:"verifiedAt" bson:"verifiedAt"`
	VerifiedBy string             `json:"verifiedBy,omitempty" bson:"verifiedBy,omitempty"`
	CreatedAt  time.Time          `json:"createdAt" bson:"createdAt"`
}

// CreateRegistrationRequest is the body accepted when an attendee signs up for an event
type CreateRegistrationRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	EventID  string `json:"eventId" validate:"required"`
	TimeSlot string `json:"timeSlot" validate:"required"`
	Category string `json:"category" validate:"omitempty,oneof=donor volunteer staff"`
}

// RegistrationQRPayload is the JSON encoded into a registration badge
type RegistrationQRPayload struct {
	Token string `json:"token"`
}
