package importer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/leadcraft/leadflow/internal/lead"
)

// formationColors is the palette cycled through when the resolver creates
// missing formations. Deterministic: the nth created formation overall gets
// palette[n % len].
var formationColors = []string{
	"#4F46E5", "#059669", "#D97706", "#DC2626", "#7C3AED",
	"#0891B2", "#DB2777", "#65A30D", "#EA580C", "#475569",
}

// FormationResolver materializes formation names into ids. It builds a
// case-insensitive name index once per run; when creation is enabled,
// distinct unseen names become new formations with a cyclically chosen color
// and a position appended after the existing entries.
type FormationResolver struct {
	store         FormationStore
	createMissing bool

	byName  map[string]lead.Formation
	nextPos int
	created int
	total   int
}

// NewFormationResolver loads the existing dimension entries and indexes them
// by lowercased name.
func NewFormationResolver(ctx context.Context, store FormationStore, createMissing bool) (*FormationResolver, error) {
	existing, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list formations: %w", err)
	}

	r := &FormationResolver{
		store:         store,
		createMissing: createMissing,
		byName:        make(map[string]lead.Formation, len(existing)),
		total:         len(existing),
	}
	for _, f := range existing {
		r.byName[strings.ToLower(strings.TrimSpace(f.Name))] = f
		if f.Position >= r.nextPos {
			r.nextPos = f.Position + 1
		}
	}
	return r, nil
}

// ResolveAll sets FormationID on every record whose FormationName matches an
// entry, creating missing entries first when enabled. Records with unmatched
// names are left unset, never rejected.
func (r *FormationResolver) ResolveAll(ctx context.Context, records []*Record) error {
	if r.createMissing {
		if err := r.createUnseen(ctx, records); err != nil {
			return err
		}
	}

	for _, rec := range records {
		name := strings.TrimSpace(rec.FormationName)
		if name == "" {
			continue
		}
		if f, ok := r.byName[strings.ToLower(name)]; ok {
			id := f.ID
			rec.FormationID = &id
		}
	}
	return nil
}

// createUnseen creates one formation per distinct unseen name, in first-seen
// row order so repeated runs over the same file produce the same sequence of
// colors and positions.
func (r *FormationResolver) createUnseen(ctx context.Context, records []*Record) error {
	type unseen struct {
		name  string
		order int
	}
	var missing []unseen
	seen := make(map[string]bool)

	for i, rec := range records {
		name := strings.TrimSpace(rec.FormationName)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := r.byName[key]; ok {
			continue
		}
		if !seen[key] {
			seen[key] = true
			missing = append(missing, unseen{name: name, order: i})
		}
	}

	sort.Slice(missing, func(i, j int) bool { return missing[i].order < missing[j].order })

	for _, m := range missing {
		f, err := r.store.Create(ctx, lead.Formation{
			Name:     m.name,
			ColorHex: formationColors[(r.total+r.created)%len(formationColors)],
			Position: r.nextPos,
			Active:   true,
		})
		if err != nil {
			return fmt.Errorf("create formation %q: %w", m.name, err)
		}
		r.byName[strings.ToLower(m.name)] = f
		r.nextPos++
		r.created++
	}
	return nil
}

// Created reports how many formations this run materialized.
func (r *FormationResolver) Created() int {
	return r.created
}
