package auth

// Credentials is one entry of the account file, keyed by username.
type Credentials struct {
	PasswordHash string `json:"Password"`
}

// accounts is the on-disk form of login_details.json.
type accounts map[string]Credentials
