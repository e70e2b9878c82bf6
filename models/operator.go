package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// AllEvents in an operator scope grants access to every event
const AllEvents = "*"

// Operator holds the structure for the operators collection in mongo
type Operator struct {
	ID       primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Email    string             `json:"email" bson:"email"`
	Password string             `json:"-" bson:"password"`
	Name     string             `json:"name" bson:"name"`
	Events   []string           `json:"events" bson:"events"`
	Active   bool               `json:"active" bson:"active"`
}
