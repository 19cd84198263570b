package org

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"evalsvc/internal/shared/apperror"
)

var ErrNotFound = apperror.NotFound("No employee carries this external id")

// Lookup resolves ids issued by the external directory to internal
// employee ids.
type Lookup interface {
	ResolveInternalID(ctx context.Context, externalID string) (string, error)
}

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) ResolveInternalID(ctx context.Context, externalID string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, "SELECT id::text FROM employees WHERE external_id = $1", externalID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}
