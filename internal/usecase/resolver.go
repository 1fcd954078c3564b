package usecase

import (
	"context"
	"fmt"

	"github.com/cantera/papers-backend/internal/domain"
	"github.com/cantera/papers-backend/pkg/crossref"
	"github.com/cantera/papers-backend/pkg/datacite"
)

// Metadata is the canonical record produced regardless of upstream source.
type Metadata struct {
	DOI   string `json:"doi"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// MetadataResolver normalizes the heterogeneous upstream response shapes
// into a canonical {doi, title, url} record.
type MetadataResolver interface {
	Resolve(ctx context.Context, doi string, source domain.Source) (*Metadata, error)
}

// Resolver dispatches on the declared source: figshare and zenodo deposits
// are registered with DataCite, everything else goes through Crossref.
type Resolver struct {
	datacite *datacite.Client
	crossref *crossref.Client
}

func NewResolver(dc *datacite.Client, cr *crossref.Client) *Resolver {
	return &Resolver{datacite: dc, crossref: cr}
}

func (r *Resolver) Resolve(ctx context.Context, doi string, source domain.Source) (*Metadata, error) {
	switch source {
	case domain.SourceFigshare, domain.SourceZenodo:
		rec, err := r.datacite.Lookup(ctx, doi)
		if err != nil {
			return nil, err
		}
		return &Metadata{DOI: rec.DOI, Title: rec.Title, URL: rec.URL}, nil
	case domain.SourceCrossref:
		rec, err := r.crossref.Lookup(ctx, doi)
		if err != nil {
			return nil, err
		}
		return &Metadata{DOI: rec.DOI, Title: rec.Title, URL: rec.URL}, nil
	default:
		return nil, fmt.Errorf("unknown metadata source %q", source)
	}
}
