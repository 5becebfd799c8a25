package models

import "time"

// NoPrivilege is the privilege name reported for accounts whose
// privilege reference does not resolve to a privilege record.
const NoPrivilege = "no privilege"

// User represents a user account as stored.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Birthday     *time.Time `json:"birthday,omitempty"`
	PasswordHash string     `json:"-"` // Never expose this to the client
	PrivilegeID  *int64     `json:"privilegeId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// PublicUser is the client-facing view of an account: privilege
// resolved to its name, password excluded.
type PublicUser struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Birthday  *time.Time `json:"birthday,omitempty"`
	Privilege string     `json:"privilege"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// UserUpdate carries the optional fields of a profile update. Nil means
// the field was not provided and must be left untouched.
type UserUpdate struct {
	Username    *string
	Email       *string
	Birthday    *time.Time
	Password    *string
	PrivilegeID *int64
}
