package models

// Role identifies which side of a chat an actor is on.
type Role string

const (
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Opposite returns the other human role in a chat. System is its own
// opposite so system messages never match a reader's mark-read filter.
func (r Role) Opposite() Role {
	switch r {
	case RoleUser:
		return RoleAdmin
	case RoleAdmin:
		return RoleUser
	default:
		return RoleSystem
	}
}

// Actor is the authenticated caller of an operation. Services receive it
// explicitly instead of reading identity out of ambient session state.
type Actor struct {
	Role Role `json:"role"`
	ID   int  `json:"id"`
}
