package models

// AdminPrivilege is the name of the privilege tier allowed to manage
// other accounts.
const AdminPrivilege = "admin"

// DefaultPrivilege is the tier assigned to newly registered accounts.
const DefaultPrivilege = "user"

// Privilege represents a named authorization tier.
type Privilege struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
