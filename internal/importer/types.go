// Package importer implements the bulk lead import pipeline: tabular parsing,
// header-to-field inference, two-tier duplicate detection, ownership
// distribution, formation resolution, chunked persistence, and post-insert
// duplicate marking. The pipeline has no UI dependencies and talks to storage
// only through the interfaces declared in this file.
package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leadcraft/leadflow/internal/lead"
)

// Field is a canonical lead attribute a header can map to.
type Field string

// Canonical fields, in the priority order the mapper evaluates them.
const (
	FieldFirstName Field = "first_name"
	FieldLastName  Field = "last_name"
	FieldFullName  Field = "full_name"
	FieldEmail     Field = "email"
	FieldPhone     Field = "phone"
	FieldCompany   Field = "company"
	FieldFormation Field = "formation"
	FieldStatus    Field = "status"
	FieldCity      Field = "city"
	FieldNotes     Field = "notes"

	// FieldIgnore is the total-function default for unrecognized headers.
	FieldIgnore Field = "ignore"
)

// RawRow is one parsed input line, keyed by header. Values are raw strings;
// rows shorter than the header carry empty strings for the missing columns.
type RawRow map[string]string

// Table is the parser output: the ordered header list and the data rows.
type Table struct {
	Headers []string
	Rows    []RawRow
}

// Record is the typed projection of a RawRow through a FieldMapping, plus
// derived values (synthesized full name, defaults, assignment, formation id).
// SourceRowIndex points back at the originating row in Table.Rows.
type Record struct {
	SourceRowIndex int

	FirstName     string
	LastName      string
	FullName      string
	Email         string
	Phone         string
	Company       string
	City          string
	Notes         string
	Status        string
	Priority      string
	FormationName string

	AssignedTo  *uuid.UUID
	FormationID *uuid.UUID

	IsDuplicate    bool
	DuplicateOfID  *uuid.UUID
	MatchingFields []string
}

// HasIdentity reports whether the record carries at least one identifying
// attribute. Records without one are never accepted into a batch.
func (r *Record) HasIdentity() bool {
	return r.FullName != "" || r.FirstName != "" || r.LastName != "" ||
		r.Email != "" || r.Phone != ""
}

// LeadIdentity is the slim view of a stored lead the duplicate detector
// works with.
type LeadIdentity struct {
	ID    uuid.UUID
	Email string
	Phone string
}

// DuplicateCandidate flags a row as matching either a stored lead or an
// earlier row in the same batch.
type DuplicateCandidate struct {
	SourceRowIndex int

	// MatchedExistingID is set when the canonical original is a stored lead.
	// When nil, the original is the earlier batch row at MatchedRowIndex.
	MatchedExistingID *uuid.UUID
	MatchedRowIndex   int

	// MatchingFields lists every channel that matched: "email", "phone".
	MatchingFields []string
}

// ImportError describes one failure encountered during a run.
type ImportError struct {
	Stage   string `json:"stage"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func (e ImportError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", e.Stage, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// ImportResult is the structured outcome of one import run. A failed chunk
// leaves the run partially applied: Inserted counts what was committed.
// Skipped counts accepted records that were not inserted (dropped duplicates
// or lost chunks), so Inserted+Skipped always equals Accepted. Rows rejected
// before acceptance appear only in Errors.
type ImportResult struct {
	RunID      string        `json:"runId"`
	FileName   string        `json:"fileName,omitempty"`
	TotalRows  int           `json:"totalRows"`
	Accepted   int           `json:"accepted"`
	Inserted   int           `json:"inserted"`
	Duplicates int           `json:"duplicates"`
	Skipped    int           `json:"skipped"`
	Errors     []ImportError `json:"errors,omitempty"`
	Warnings   []string      `json:"warnings,omitempty"`
	Duration   time.Duration `json:"-"`
}

// ProgressFunc receives cumulative progress as an integer 0-100.
// By convention 0-50 covers parsing/mapping/deduplication and 50-100 covers
// persistence.
type ProgressFunc func(percent int)

// Hook runs after a successful commit, outside the caller's result path.
// Used for fire-and-forget triggers such as AI scoring or enrichment.
type Hook func(ctx context.Context, result ImportResult)

// LeadStore is the persistence surface the pipeline produces into.
type LeadStore interface {
	// Identities returns a snapshot of every stored lead that carries an
	// email or a phone. Built once per run to bound query cost.
	Identities(ctx context.Context) ([]LeadIdentity, error)

	// FindByEmailOrPhone returns any stored lead whose email equals email or
	// whose phone equals phone. Empty arguments never match. Returns nil
	// when no lead matches.
	FindByEmailOrPhone(ctx context.Context, email, phone string) (*LeadIdentity, error)

	// InsertLeads commits one chunk and returns the store-assigned ids in
	// the same relative order as the submitted records.
	InsertLeads(ctx context.Context, records []*Record) ([]uuid.UUID, error)

	// MarkDuplicate links an inserted lead to its canonical original.
	MarkDuplicate(ctx context.Context, id, originalID uuid.UUID, matchingFields []string) error
}

// FormationStore is the auxiliary category dimension the resolver reads and,
// when creation is enabled, extends.
type FormationStore interface {
	List(ctx context.Context) ([]lead.Formation, error)
	Create(ctx context.Context, f lead.Formation) (lead.Formation, error)
}

// TeamStore supplies the ordered roster of assignable members.
type TeamStore interface {
	Roster(ctx context.Context) ([]lead.TeamMember, error)
}

// ParseError reports a malformed input file. Nothing is persisted when the
// parser fails; re-uploading a corrected file is always safe.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Message)
	}
	return "parse error: " + e.Message
}

// MappingError reports that no header resolves to an identifying field.
// It blocks the run before any write occurs.
type MappingError struct {
	Message string
}

func (e *MappingError) Error() string {
	return "mapping error: " + e.Message
}
