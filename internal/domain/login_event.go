package domain

import (
	"time"

	"github.com/google/uuid"
)

// LoginEvent is an audit record appended on every successful OAuth
// completion. Inserts are best-effort: a failure must not fail the login.
type LoginEvent struct {
	ID        uuid.UUID `json:"id"`
	GHLogin   string    `json:"gh_login"`
	GHID      int64     `json:"gh_id"`
	Teams     string    `json:"teams"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginEventRepository interface {
	Create(event *LoginEvent) error
	ListRecent(limit, offset int) ([]*LoginEvent, int, error)
}
