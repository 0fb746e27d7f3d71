package domain

// User is the identity referenced by links and session tokens.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	CreatedAt    int64  `json:"created_at"`
}

// Identity is what the authorization gate resolves a token to.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
}
