package models

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Identity is the authenticated caller resolved by the auth layer
type Identity struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
