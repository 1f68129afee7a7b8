package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leadcraft/leadflow/internal/lead"
)

// Team is the pgx-backed roster store. It satisfies importer.TeamStore.
type Team struct {
	pool *pgxpool.Pool
}

// NewTeam creates the team store.
func NewTeam(pool *pgxpool.Pool) *Team {
	return &Team{pool: pool}
}

// Roster returns the assignable members in their configured order. The order
// matters: the round-robin distributor walks it cyclically.
func (s *Team) Roster(ctx context.Context) ([]lead.TeamMember, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, display_name FROM team_members ORDER BY position, created_at`)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	defer rows.Close()

	var out []lead.TeamMember
	for rows.Next() {
		var m lead.TeamMember
		if err := rows.Scan(&m.ID, &m.DisplayName); err != nil {
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
