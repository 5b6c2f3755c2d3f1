package domain

import "time"

type Action string

const (
	ActionSignUp         Action = "SIGN_UP"
	ActionSignIn         Action = "SIGN_IN"
	ActionSignOut        Action = "SIGN_OUT"
	ActionUpdatePassword Action = "UPDATE_PASSWORD"
	ActionUpdateAccount  Action = "UPDATE_ACCOUNT"
	ActionDeleteAccount  Action = "DELETE_ACCOUNT"
)

// UnknownIP is recorded when the client address could not be determined.
const UnknownIP = "0.0.0.0"

// ActivityLogEntry is an append-only audit record. UserID is free text: for
// federated sign-ins it holds the provider's user id.
type ActivityLogEntry struct {
	ID        string
	UserID    string
	Action    Action
	IPAddress string
	Metadata  string
	CreatedAt time.Time
}
