// Package lead defines the domain types shared by the importer, the store,
// and the web layer: leads, formation tags, and team members.
package lead

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SourceImport marks leads created by the bulk import pipeline.
const SourceImport = "import"

// Statuses is the allowed status vocabulary, in workflow order.
// The first entry is the default for newly imported leads.
var Statuses = []string{"new", "contacted", "qualified", "converted", "lost"}

// Priorities is the allowed priority vocabulary.
var Priorities = []string{"low", "medium", "high"}

// DefaultStatus is assigned to imported leads with no mapped status column.
const DefaultStatus = "new"

// DefaultPriority is assigned to imported leads with no explicit priority.
const DefaultPriority = "medium"

// Lead is a single sales lead record.
type Lead struct {
	ID          uuid.UUID
	FirstName   string
	LastName    string
	FullName    string
	Email       string
	Phone       string
	Company     string
	City        string
	Notes       string
	Status      string
	Priority    string
	Source      string
	AssignedTo  *uuid.UUID
	FormationID *uuid.UUID

	// Duplicate linkage, set after insertion by the duplicate marker.
	IsDuplicate             bool
	DuplicateOfID           *uuid.UUID
	DuplicateMatchingFields []string

	CreatedAt time.Time
}

// Formation is an auxiliary categorical dimension: a training-program tag
// leads reference by id. Looked up case-insensitively by name.
type Formation struct {
	ID       uuid.UUID
	Name     string
	ColorHex string
	Position int
	Active   bool
}

// TeamMember is an assignable owner for imported leads.
type TeamMember struct {
	ID          uuid.UUID
	DisplayName string
}

// ValidStatus reports whether s is part of the status vocabulary.
// Comparison is case-insensitive.
func ValidStatus(s string) bool {
	for _, v := range Statuses {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// ValidPriority reports whether s is part of the priority vocabulary.
func ValidPriority(s string) bool {
	for _, v := range Priorities {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
