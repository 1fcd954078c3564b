package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cantera/papers-backend/internal/domain"
)

// uniqueViolation is the Postgres error code for a unique-constraint hit.
const uniqueViolation = "23505"

const paperColumns = "id, doi, title, COALESCE(url, ''), is_approved, is_displayed, created_at"

type PaperRepository struct {
	db *pgxpool.Pool
}

func NewPaperRepository(db *pgxpool.Pool) *PaperRepository {
	return &PaperRepository{db: db}
}

// CreateOrGet inserts the paper, or returns the existing row when the DOI is
// already known. The existence check is not race-free, so a concurrent
// insert of the same DOI is resolved by re-reading on the unique-constraint
// violation rather than failing the request.
func (r *PaperRepository) CreateOrGet(paper *domain.Paper) (*domain.Paper, error) {
	existing, err := r.GetByDOI(paper.DOI)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if paper.ID == uuid.Nil {
		paper.ID = uuid.New()
	}
	paper.CreatedAt = time.Now()

	query := `
		INSERT INTO papers (id, doi, title, url, is_approved, is_displayed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.Exec(ctx, query,
		paper.ID,
		paper.DOI,
		paper.Title,
		paper.URL,
		paper.IsApproved,
		paper.IsDisplayed,
		paper.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// Lost the race against a concurrent submission of the same
			// DOI; the first writer wins.
			return r.GetByDOI(paper.DOI)
		}
		return nil, err
	}

	return paper, nil
}

func (r *PaperRepository) GetByID(id uuid.UUID) (*domain.Paper, error) {
	return r.getOne(`SELECT `+paperColumns+` FROM papers WHERE id = $1`, id)
}

func (r *PaperRepository) GetByDOI(doi string) (*domain.Paper, error) {
	return r.getOne(`SELECT `+paperColumns+` FROM papers WHERE doi = $1`, doi)
}

func (r *PaperRepository) GetDisplayedByDOI(doi string) (*domain.Paper, error) {
	return r.getOne(`SELECT `+paperColumns+` FROM papers WHERE doi = $1 AND is_displayed`, doi)
}

func (r *PaperRepository) getOne(query string, arg interface{}) (*domain.Paper, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	paper := &domain.Paper{}
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&paper.ID,
		&paper.DOI,
		&paper.Title,
		&paper.URL,
		&paper.IsApproved,
		&paper.IsDisplayed,
		&paper.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return paper, nil
}

// ListAll returns every paper, newest first. This is the moderation view.
func (r *PaperRepository) ListAll() ([]*domain.Paper, error) {
	return r.list(`SELECT ` + paperColumns + ` FROM papers ORDER BY created_at DESC`)
}

// ListDisplayed returns only displayed papers. This is the public view.
func (r *PaperRepository) ListDisplayed() ([]*domain.Paper, error) {
	return r.list(`SELECT ` + paperColumns + ` FROM papers WHERE is_displayed ORDER BY created_at DESC`)
}

func (r *PaperRepository) list(query string) ([]*domain.Paper, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var papers []*domain.Paper
	for rows.Next() {
		paper := &domain.Paper{}
		err := rows.Scan(
			&paper.ID,
			&paper.DOI,
			&paper.Title,
			&paper.URL,
			&paper.IsApproved,
			&paper.IsDisplayed,
			&paper.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		papers = append(papers, paper)
	}

	return papers, rows.Err()
}

// SetApproval couples the two flags: approving always makes the paper
// visible, revoking approval always hides it. Returns nil when the id is
// unknown.
func (r *PaperRepository) SetApproval(id uuid.UUID, approved bool) (*domain.Paper, error) {
	query := `
		UPDATE papers SET is_approved = $2, is_displayed = $2
		WHERE id = $1
		RETURNING ` + paperColumns
	return r.update(query, id, approved)
}

// SetDisplay toggles visibility only; the approval flag is untouched.
func (r *PaperRepository) SetDisplay(id uuid.UUID, displayed bool) (*domain.Paper, error) {
	query := `
		UPDATE papers SET is_displayed = $2
		WHERE id = $1
		RETURNING ` + paperColumns
	return r.update(query, id, displayed)
}

func (r *PaperRepository) update(query string, id uuid.UUID, value bool) (*domain.Paper, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	paper := &domain.Paper{}
	err := r.db.QueryRow(ctx, query, id, value).Scan(
		&paper.ID,
		&paper.DOI,
		&paper.Title,
		&paper.URL,
		&paper.IsApproved,
		&paper.IsDisplayed,
		&paper.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return paper, nil
}
