package model

// User account types
const (
	UserTypeUser    = "user"
	UserTypeSupport = "support"
	UserTypeAdmin   = "admin"
)

// User represents an account as seen by the chat core
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	UserType  string `json:"user_type"`
}
