package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Source identifies the upstream metadata API a DOI is resolved against.
type Source string

const (
	SourceFigshare Source = "figshare"
	SourceZenodo   Source = "zenodo"
	SourceCrossref Source = "crossref"
)

// ParseSource validates a user-supplied source name.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceFigshare, SourceZenodo, SourceCrossref:
		return Source(s), nil
	}
	return "", fmt.Errorf("unknown metadata source %q", s)
}

// Paper is a submitted paper. The DOI is the natural key; papers are never
// hard-deleted, only hidden via the approval/display flags.
type Paper struct {
	ID          uuid.UUID `json:"id"`
	DOI         string    `json:"doi"`
	Title       string    `json:"title"`
	URL         string    `json:"url,omitempty"`
	IsApproved  bool      `json:"is_approved"`
	IsDisplayed bool      `json:"is_displayed"`
	CreatedAt   time.Time `json:"created_at"`
}

type PaperRepository interface {
	// CreateOrGet inserts the paper unless a row with the same DOI already
	// exists, in which case the existing row is returned unchanged.
	CreateOrGet(paper *Paper) (*Paper, error)
	GetByID(id uuid.UUID) (*Paper, error)
	GetByDOI(doi string) (*Paper, error)
	// GetDisplayedByDOI returns the paper only if it is currently displayed.
	GetDisplayedByDOI(doi string) (*Paper, error)
	ListAll() ([]*Paper, error)
	ListDisplayed() ([]*Paper, error)
	// SetApproval sets both is_approved and is_displayed: approving always
	// makes a paper visible, revoking approval always hides it.
	SetApproval(id uuid.UUID, approved bool) (*Paper, error)
	// SetDisplay toggles is_displayed only; is_approved is untouched.
	SetDisplay(id uuid.UUID, displayed bool) (*Paper, error)
}
