package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Principal is the authenticated identity resolved from a session token.
// Service methods take it by value so that no ambient session lookup
// happens below the HTTP layer.
type Principal struct {
	ID    primitive.ObjectID
	Name  string
	Email string
	Role  string
}

func (p Principal) IsZero() bool {
	return p.ID.IsZero()
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
