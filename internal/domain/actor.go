package domain

// TeamCommitters is the teams value that grants moderation authority.
const TeamCommitters = "Committers"

// Actor is the authenticated GitHub identity, reconstructed per request from
// the signed session cookie. It is never persisted; its lifetime is the
// validity of the cookie.
type Actor struct {
	Display string `json:"display"`
	GHID    int64  `json:"gh_id"`
	GHName  string `json:"gh_name,omitempty"`
	GHEmail string `json:"gh_email,omitempty"`
	// Teams is nil when team membership was never checked (the read:org
	// scope was not granted at login). Nil and "" both mean no moderation
	// authority, but the distinction is preserved in the token.
	Teams *string `json:"teams,omitempty"`
}

// IsCommitter reports whether the actor has moderation authority.
func (a *Actor) IsCommitter() bool {
	return a != nil && a.Teams != nil && *a.Teams == TeamCommitters
}
