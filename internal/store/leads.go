package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leadcraft/leadflow/internal/importer"
	"github.com/leadcraft/leadflow/internal/lead"
)

// Leads is the pgx-backed lead store. It satisfies importer.LeadStore.
type Leads struct {
	pool *pgxpool.Pool
}

// NewLeads creates the lead store.
func NewLeads(pool *pgxpool.Pool) *Leads {
	return &Leads{pool: pool}
}

// Identities returns one snapshot of every stored lead that carries an email
// or a phone. The importer builds its duplicate indices from this.
func (s *Leads) Identities(ctx context.Context) ([]importer.LeadIdentity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, email, phone FROM leads WHERE email <> '' OR phone <> ''`)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var out []importer.LeadIdentity
	for rows.Next() {
		var id importer.LeadIdentity
		if err := rows.Scan(&id.ID, &id.Email, &id.Phone); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// FindByEmailOrPhone returns any lead whose email equals email or whose
// phone equals phone. Empty arguments never match.
func (s *Leads) FindByEmailOrPhone(ctx context.Context, email, phone string) (*importer.LeadIdentity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, email, phone FROM leads
		 WHERE (lower(email) = lower($1) AND $1 <> '')
		    OR (phone = $2 AND $2 <> '')
		 LIMIT 1`,
		email, phone)

	var id importer.LeadIdentity
	if err := row.Scan(&id.ID, &id.Email, &id.Phone); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find by email or phone: %w", err)
	}
	return &id, nil
}

const insertLeadSQL = `
INSERT INTO leads (
    first_name, last_name, full_name, email, phone, company, city, notes,
    status, priority, source, assigned_to, formation_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING id`

// InsertLeads commits one chunk inside a transaction and returns the
// store-assigned ids in the same relative order as the submitted records.
// The chunk is atomic: either every record lands or none do.
func (s *Leads) InsertLeads(ctx context.Context, records []*importer.Record) ([]uuid.UUID, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin chunk: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(insertLeadSQL,
			rec.FirstName, rec.LastName, rec.FullName, rec.Email, rec.Phone,
			rec.Company, rec.City, rec.Notes, rec.Status, rec.Priority,
			lead.SourceImport, rec.AssignedTo, rec.FormationID,
		)
	}

	results := tx.SendBatch(ctx, batch)
	ids := make([]uuid.UUID, 0, len(records))
	for range records {
		var id uuid.UUID
		if err := results.QueryRow().Scan(&id); err != nil {
			results.Close()
			return nil, fmt.Errorf("insert lead: %w", err)
		}
		ids = append(ids, id)
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit chunk: %w", err)
	}
	return ids, nil
}

// MarkDuplicate links an inserted lead to its canonical original.
func (s *Leads) MarkDuplicate(ctx context.Context, id, originalID uuid.UUID, matchingFields []string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE leads
		 SET is_duplicate = TRUE, duplicate_of_id = $2, duplicate_matching_fields = $3
		 WHERE id = $1`,
		id, originalID, matchingFields)
	if err != nil {
		return fmt.Errorf("mark duplicate: %w", err)
	}
	return nil
}

// List returns leads ordered by creation time, newest first.
func (s *Leads) List(ctx context.Context, limit, offset int) ([]lead.Lead, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, first_name, last_name, full_name, email, phone, company,
		        city, notes, status, priority, source, assigned_to, formation_id,
		        is_duplicate, duplicate_of_id, duplicate_matching_fields, created_at
		 FROM leads
		 ORDER BY created_at DESC, id
		 LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var out []lead.Lead
	for rows.Next() {
		var l lead.Lead
		if err := rows.Scan(
			&l.ID, &l.FirstName, &l.LastName, &l.FullName, &l.Email, &l.Phone,
			&l.Company, &l.City, &l.Notes, &l.Status, &l.Priority, &l.Source,
			&l.AssignedTo, &l.FormationID, &l.IsDuplicate, &l.DuplicateOfID,
			&l.DuplicateMatchingFields, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Count returns the total number of stored leads.
func (s *Leads) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM leads`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count leads: %w", err)
	}
	return n, nil
}
