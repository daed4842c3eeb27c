package repository

import (
	"context"
	"database/sql"
	"time"

	"solarview/internal/models"
)

type EventRepo interface {
	Append(ctx context.Context, e models.SystemEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.SystemEvent, error)
}

type Repository struct {
	EventRepo EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo: NewEventSQLite(db),
	}
}
