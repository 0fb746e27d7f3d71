package domain

// TokenKind separates access credentials from refresh credentials.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// LedgerEntry records a signed token that is currently considered issued.
type LedgerEntry struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Kind      TokenKind `json:"kind"`
	ExpiresAt int64     `json:"expires_at"`
}

// TokenPair is returned by issuance.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
