package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leadcraft/leadflow/internal/lead"
	"github.com/leadcraft/leadflow/internal/logging"
)

// Options configures one import run.
type Options struct {
	// Assignment selects the ownership mode; FixedAssignee is the owner for
	// AssignFixed.
	Assignment    AssignmentMode
	FixedAssignee uuid.UUID

	// SkipDuplicates drops flagged records before persistence instead of
	// inserting them and linking them afterwards.
	SkipDuplicates bool

	// CreateMissingFormations lets the resolver materialize unseen formation
	// names. When false, unmatched names leave the record's formation unset.
	CreateMissingFormations bool

	// ChunkSize bounds each store commit. Zero means DefaultChunkSize.
	ChunkSize int

	// Statuses overrides the allowed status vocabulary. Empty means the
	// package defaults from the lead package.
	Statuses []string

	// Overrides replaces inferred fields per header before transformation.
	Overrides map[string]Field

	// Progress receives cumulative percentages, 0-100.
	Progress ProgressFunc

	// Hooks run fire-and-forget after a successful commit.
	Hooks []Hook
}

// Run carries all state for a single import: the stores, the roster, the
// distributor's rotation index, and the options. Nothing here outlives the
// run or is shared across runs; two concurrent imports against the same
// store each see their own identity snapshot, which is stale for whichever
// starts second (a known limitation of the design, not mitigated here).
type Run struct {
	id         string
	leads      LeadStore
	formations FormationStore
	roster     []lead.TeamMember
	opts       Options

	det      Detector
	dist     *Distributor
	progress ProgressFunc
}

// NewRun builds a run with a fresh id and a zeroed rotation index.
func NewRun(leads LeadStore, formations FormationStore, roster []lead.TeamMember, opts Options) *Run {
	progress := opts.Progress
	if progress == nil {
		progress = func(int) {}
	}
	return &Run{
		id:         uuid.New().String(),
		leads:      leads,
		formations: formations,
		roster:     roster,
		opts:       opts,
		dist:       NewDistributor(opts.Assignment, opts.FixedAssignee, roster),
		progress:   progress,
	}
}

// ID returns the run identifier.
func (r *Run) ID() string {
	return r.id
}

// Import parses raw file bytes and submits the result. It returns a
// *ParseError or *MappingError before any write occurs; after the first
// committed chunk, failures surface inside the ImportResult instead.
func (r *Run) Import(ctx context.Context, data []byte) (*ImportResult, error) {
	r.progress(0)

	table, err := Parse(data)
	if err != nil {
		return nil, err
	}
	r.progress(10)

	return r.Submit(ctx, table)
}

// Submit runs the pipeline over already-parsed rows: mapping, duplicate
// detection, formation resolution, assignment, chunked persistence, and
// duplicate marking.
func (r *Run) Submit(ctx context.Context, table *Table) (*ImportResult, error) {
	start := time.Now()
	log := logging.WithFields(ctx, "run_id", r.id)

	mapping := InferMapping(table.Headers)
	for header, field := range r.opts.Overrides {
		if err := mapping.Override(header, field); err != nil {
			return nil, &MappingError{Message: err.Error()}
		}
	}
	if !mapping.HasIdentityField() {
		return nil, &MappingError{
			Message: "no header resolves to a name or contact field; map at least one before importing",
		}
	}
	r.progress(15)

	result := &ImportResult{
		RunID:     r.id,
		TotalRows: len(table.Rows),
		Warnings:  mapping.Warnings(),
	}

	// Transform rows into canonical records. Every accepted record traces to
	// exactly one raw row via SourceRowIndex.
	var accepted []*Record
	for i, row := range table.Rows {
		rec := r.transform(i, mapping, row)
		if !rec.HasIdentity() {
			result.Errors = append(result.Errors, ImportError{
				Stage:   "validate",
				Line:    i + 2,
				Message: "row has no name, email, or phone after mapping",
			})
			continue
		}
		accepted = append(accepted, rec)

		if len(table.Rows) > 0 && i%100 == 0 {
			r.progress(15 + (25*i)/len(table.Rows))
		}
	}
	result.Accepted = len(accepted)
	r.progress(40)

	// Two-tier duplicate detection from one store snapshot.
	snapshot, err := r.leads.Identities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load identity snapshot: %w", err)
	}
	candidates := make([]BatchCandidate, len(accepted))
	for i, rec := range accepted {
		candidates[i] = BatchCandidate{Index: rec.SourceRowIndex, Email: rec.Email, Phone: rec.Phone}
	}
	dupes := r.det.CheckBatch(snapshot, candidates)
	result.Duplicates = len(dupes)
	r.progress(45)

	// Either drop flagged records now or carry the flags into the store.
	batch := accepted
	if r.opts.SkipDuplicates {
		batch = make([]*Record, 0, len(accepted))
		for _, rec := range accepted {
			if _, flagged := dupes[rec.SourceRowIndex]; flagged {
				result.Skipped++
				continue
			}
			batch = append(batch, rec)
		}
	} else {
		for _, rec := range batch {
			if cand, flagged := dupes[rec.SourceRowIndex]; flagged {
				rec.IsDuplicate = true
				rec.MatchingFields = cand.MatchingFields
				rec.DuplicateOfID = cand.MatchedExistingID
			}
		}
	}

	// Materialize formation ids before they can be referenced.
	if r.formations != nil {
		resolver, err := NewFormationResolver(ctx, r.formations, r.opts.CreateMissingFormations)
		if err != nil {
			return nil, err
		}
		if err := resolver.ResolveAll(ctx, batch); err != nil {
			return nil, err
		}
		if n := resolver.Created(); n > 0 {
			log.Info("formations created", "count", n)
		}
	}

	// Ownership and defaults, once per record entering the batch.
	statuses := r.opts.Statuses
	if len(statuses) == 0 {
		statuses = lead.Statuses
	}
	for _, rec := range batch {
		rec.AssignedTo = r.dist.Next()
		rec.Status = canonicalStatus(rec.Status, statuses)
		if rec.Priority == "" {
			rec.Priority = lead.DefaultPriority
		}
	}
	r.progress(50)

	// Chunked persistence. A failed chunk leaves the run partially applied:
	// committed chunks stay, the remainder is reported as skipped.
	persister := NewPersister(r.leads, r.opts.ChunkSize, r.progress, log)
	ids, persistErr := persister.Persist(ctx, batch)
	result.Inserted = len(ids)
	if persistErr != nil {
		result.Skipped += len(batch) - len(ids)
		result.Errors = append(result.Errors, ImportError{
			Stage:   "persist",
			Message: persistErr.Error(),
		})
	}

	// Best-effort duplicate linkage for whatever was inserted.
	if !r.opts.SkipDuplicates && len(dupes) > 0 && len(ids) > 0 {
		marked := NewMarker(r.leads, log).Mark(ctx, batch, ids, dupes)
		log.Debug("duplicates marked", "count", marked, "flagged", len(dupes))
	}

	result.Duration = time.Since(start)

	if persistErr == nil {
		r.progress(100)
		r.fireHooks(*result)
	}

	log.Info("import finished",
		"rows", result.TotalRows,
		"accepted", result.Accepted,
		"inserted", result.Inserted,
		"duplicates", result.Duplicates,
		"skipped", result.Skipped,
		"errors", len(result.Errors),
	)

	return result, nil
}

// transform applies the mapping to one raw row. Headers are visited in input
// order, so when several headers map to the same field the rightmost column
// wins; Warnings surfaced the collision at mapping time.
func (r *Run) transform(rowIdx int, mapping FieldMapping, row RawRow) *Record {
	rec := &Record{SourceRowIndex: rowIdx}

	for _, h := range mapping.Headers() {
		value := strings.TrimSpace(row[h])
		if value == "" {
			continue
		}
		switch mapping.Field(h) {
		case FieldFirstName:
			rec.FirstName = value
		case FieldLastName:
			rec.LastName = value
		case FieldFullName:
			rec.FullName = value
		case FieldEmail:
			rec.Email = NormalizeEmail(value)
		case FieldPhone:
			rec.Phone = value
		case FieldCompany:
			rec.Company = value
		case FieldFormation:
			rec.FormationName = value
		case FieldStatus:
			rec.Status = value
		case FieldCity:
			rec.City = value
		case FieldNotes:
			rec.Notes = value
		}
	}

	if rec.FullName == "" {
		rec.FullName = strings.TrimSpace(rec.FirstName + " " + rec.LastName)
	}

	return rec
}

// canonicalStatus maps a raw status cell onto the vocabulary, falling back
// to the default for unknown or missing values.
func canonicalStatus(raw string, vocabulary []string) string {
	for _, v := range vocabulary {
		if strings.EqualFold(raw, v) {
			return v
		}
	}
	return vocabulary[0]
}

// fireHooks invokes the post-commit hooks without awaiting them. A panicking
// hook is contained; nothing here can reach the caller's ImportResult.
func (r *Run) fireHooks(result ImportResult) {
	for _, hook := range r.opts.Hooks {
		h := hook
		go func() {
			defer func() {
				if rec := recover(); rec != nil {
					slog.Default().Error("post-commit hook panicked", "run_id", r.id, "panic", rec)
				}
			}()
			h(context.Background(), result)
		}()
	}
}
