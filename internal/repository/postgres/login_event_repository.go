package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cantera/papers-backend/internal/domain"
)

type LoginEventRepository struct {
	db *pgxpool.Pool
}

func NewLoginEventRepository(db *pgxpool.Pool) *LoginEventRepository {
	return &LoginEventRepository{db: db}
}

func (r *LoginEventRepository) Create(event *domain.LoginEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()

	query := `
		INSERT INTO login_events (id, gh_login, gh_id, teams, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query,
		event.ID, event.GHLogin, event.GHID, event.Teams, event.CreatedAt,
	)
	return err
}

func (r *LoginEventRepository) ListRecent(limit, offset int) ([]*domain.LoginEvent, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM login_events`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, gh_login, gh_id, teams, created_at
		FROM login_events
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*domain.LoginEvent
	for rows.Next() {
		e := &domain.LoginEvent{}
		if err := rows.Scan(&e.ID, &e.GHLogin, &e.GHID, &e.Teams, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}
