package domain

// Link represents a shortened URL owned by a user.
// Timestamps are unix seconds.
type Link struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Destination string `json:"destination"`
	Active      bool   `json:"active"`
	VisitCount  int64  `json:"visit_count"`
	CreatedAt   int64  `json:"created_at"`
	ExpiresAt   *int64 `json:"expires_at,omitempty"` // nil means single-use
}

// SingleUse reports whether the link is consumed by its first redirect.
func (l *Link) SingleUse() bool {
	return l.ExpiresAt == nil
}

// Expired reports whether the link has reached its expiry at now.
func (l *Link) Expired(now int64) bool {
	return l.ExpiresAt != nil && now >= *l.ExpiresAt
}

// DeactivationNotice is emitted after a link transitions to inactive.
type DeactivationNotice struct {
	OwnerID     string `json:"owner_id"`
	Destination string `json:"destination"`
}
