package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/cantera/papers-backend/internal/domain"
)

var (
	ErrPaperNotFound = errors.New("paper not found")
	// ErrAmbiguousTransition means the moderation request did not name
	// exactly one of the approve/display transitions.
	ErrAmbiguousTransition = errors.New("exactly one of approve or display must drive the transition")
)

// ModerationUsecase owns the paper lifecycle: submission, the approval
// queue, and the approve/display transitions.
type ModerationUsecase struct {
	papers   domain.PaperRepository
	resolver MetadataResolver
}

func NewModerationUsecase(papers domain.PaperRepository, resolver MetadataResolver) *ModerationUsecase {
	return &ModerationUsecase{
		papers:   papers,
		resolver: resolver,
	}
}

// Submit resolves the DOI against the declared source and stores the result.
// Submission is idempotent with respect to DOI: a resubmission returns the
// existing row unchanged, even if upstream metadata has since changed. On a
// resolver failure no row is created.
func (u *ModerationUsecase) Submit(ctx context.Context, doi string, source domain.Source) (*domain.Paper, error) {
	meta, err := u.resolver.Resolve(ctx, doi, source)
	if err != nil {
		return nil, err
	}

	return u.papers.CreateOrGet(&domain.Paper{
		DOI:   meta.DOI,
		Title: meta.Title,
		URL:   meta.URL,
	})
}

// TransitionInput carries the intended moderation state. Exactly one field
// must be set.
type TransitionInput struct {
	Approve *bool `json:"approve,omitempty"`
	Display *bool `json:"display,omitempty"`
}

// Transition applies a single moderation transition to a paper. Approving
// couples visibility to approval in both directions; display toggles
// visibility alone.
func (u *ModerationUsecase) Transition(id uuid.UUID, input *TransitionInput) (*domain.Paper, error) {
	var (
		paper *domain.Paper
		err   error
	)

	switch {
	case input.Approve != nil && input.Display == nil:
		paper, err = u.papers.SetApproval(id, *input.Approve)
	case input.Display != nil && input.Approve == nil:
		paper, err = u.papers.SetDisplay(id, *input.Display)
	default:
		return nil, ErrAmbiguousTransition
	}

	if err != nil {
		return nil, err
	}
	if paper == nil {
		return nil, ErrPaperNotFound
	}
	return paper, nil
}

// Queue returns every paper, for the moderation view.
func (u *ModerationUsecase) Queue() ([]*domain.Paper, error) {
	return u.papers.ListAll()
}

// PublicList returns only displayed papers.
func (u *ModerationUsecase) PublicList() ([]*domain.Paper, error) {
	return u.papers.ListDisplayed()
}

// Lookup serves the public single-paper endpoint: a displayed stored row
// wins over an upstream fetch, so already-moderated metadata stays stable.
func (u *ModerationUsecase) Lookup(ctx context.Context, doi string, source domain.Source) (*Metadata, error) {
	stored, err := u.papers.GetDisplayedByDOI(doi)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		return &Metadata{DOI: stored.DOI, Title: stored.Title, URL: stored.URL}, nil
	}

	return u.resolver.Resolve(ctx, doi, source)
}
