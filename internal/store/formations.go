package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leadcraft/leadflow/internal/lead"
)

// Formations is the pgx-backed formation dimension. It satisfies
// importer.FormationStore.
type Formations struct {
	pool *pgxpool.Pool
}

// NewFormations creates the formation store.
func NewFormations(pool *pgxpool.Pool) *Formations {
	return &Formations{pool: pool}
}

// List returns all formations ordered by position.
func (s *Formations) List(ctx context.Context) ([]lead.Formation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, color_hex, position, is_active
		 FROM formations
		 ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("list formations: %w", err)
	}
	defer rows.Close()

	var out []lead.Formation
	for rows.Next() {
		var f lead.Formation
		if err := rows.Scan(&f.ID, &f.Name, &f.ColorHex, &f.Position, &f.Active); err != nil {
			return nil, fmt.Errorf("scan formation: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Create inserts a new formation and returns it with its assigned id.
// The unique index on lower(name) rejects case-insensitive name collisions.
func (s *Formations) Create(ctx context.Context, f lead.Formation) (lead.Formation, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO formations (name, color_hex, position, is_active)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		f.Name, f.ColorHex, f.Position, f.Active).Scan(&f.ID)
	if err != nil {
		return lead.Formation{}, fmt.Errorf("create formation: %w", err)
	}
	return f, nil
}
