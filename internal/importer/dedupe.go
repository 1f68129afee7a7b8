package importer

import (
	"context"
	"fmt"
	"strings"
)

// dedupe.go implements two-tier duplicate detection.
//
// CheckOne answers a single-record question against the live store. CheckBatch
// works from one snapshot of stored identities plus two batch-local indices
// built incrementally, so the total cost is O(existing + batch) rather than
// O(existing x batch). A store match always beats a batch-local match: when a
// pre-existing record exists it is the canonical original.

// NormalizeEmail lowercases and trims an email for identity comparison.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizePhone strips every non-digit character except a leading '+'.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}

	out := b.String()
	if out == "+" {
		return ""
	}
	return out
}

// BatchCandidate is one row's identifying attributes, keyed by its source
// row index.
type BatchCandidate struct {
	Index int
	Email string
	Phone string
}

// Detector resolves duplicate candidates. It is stateless; all run-scoped
// state (the snapshot indices) lives inside each call.
type Detector struct{}

// CheckOne queries the store for any existing lead whose email or phone
// equals the given values and reports which channels matched. Returns nil
// when the record is not a duplicate.
func (Detector) CheckOne(ctx context.Context, store LeadStore, email, phone string) (*DuplicateCandidate, error) {
	email = NormalizeEmail(email)
	phone = NormalizePhone(phone)
	if email == "" && phone == "" {
		return nil, nil
	}

	existing, err := store.FindByEmailOrPhone(ctx, email, phone)
	if err != nil {
		return nil, fmt.Errorf("duplicate lookup: %w", err)
	}
	if existing == nil {
		return nil, nil
	}

	cand := &DuplicateCandidate{MatchedExistingID: &existing.ID}
	if email != "" && NormalizeEmail(existing.Email) == email {
		cand.MatchingFields = append(cand.MatchingFields, "email")
	}
	if phone != "" && NormalizePhone(existing.Phone) == phone {
		cand.MatchingFields = append(cand.MatchingFields, "phone")
	}
	return cand, nil
}

// CheckBatch resolves every candidate against the store snapshot first, then
// against earlier rows of the same batch. Intra-file duplicates are flagged
// only on their second and later occurrences: the first occurrence of a
// normalized identity in index order is canonical and is never flagged.
// Rows with neither email nor phone are never flagged and never indexed.
func (Detector) CheckBatch(snapshot []LeadIdentity, candidates []BatchCandidate) map[int]DuplicateCandidate {
	storeByEmail := make(map[string]LeadIdentity, len(snapshot))
	storeByPhone := make(map[string]LeadIdentity, len(snapshot))
	for _, id := range snapshot {
		if e := NormalizeEmail(id.Email); e != "" {
			if _, seen := storeByEmail[e]; !seen {
				storeByEmail[e] = id
			}
		}
		if p := NormalizePhone(id.Phone); p != "" {
			if _, seen := storeByPhone[p]; !seen {
				storeByPhone[p] = id
			}
		}
	}

	// Batch-local indices, filled as rows are processed.
	batchByEmail := make(map[string]int)
	batchByPhone := make(map[string]int)

	found := make(map[int]DuplicateCandidate)

	for _, c := range candidates {
		email := NormalizeEmail(c.Email)
		phone := NormalizePhone(c.Phone)
		if email == "" && phone == "" {
			continue
		}

		var storeMatch *LeadIdentity
		var storeFields []string
		if email != "" {
			if id, ok := storeByEmail[email]; ok {
				storeMatch = &id
				storeFields = append(storeFields, "email")
			}
		}
		if phone != "" {
			if id, ok := storeByPhone[phone]; ok {
				if storeMatch == nil {
					storeMatch = &id
				}
				if storeMatch.ID == id.ID {
					storeFields = append(storeFields, "phone")
				}
			}
		}

		if storeMatch != nil {
			found[c.Index] = DuplicateCandidate{
				SourceRowIndex:    c.Index,
				MatchedExistingID: &storeMatch.ID,
				MatchingFields:    storeFields,
			}
		} else {
			var batchFields []string
			matchedRow := -1
			if email != "" {
				if row, ok := batchByEmail[email]; ok {
					matchedRow = row
					batchFields = append(batchFields, "email")
				}
			}
			if phone != "" {
				if row, ok := batchByPhone[phone]; ok {
					if matchedRow < 0 {
						matchedRow = row
					}
					if matchedRow == row {
						batchFields = append(batchFields, "phone")
					}
				}
			}
			if matchedRow >= 0 {
				found[c.Index] = DuplicateCandidate{
					SourceRowIndex:  c.Index,
					MatchedRowIndex: matchedRow,
					MatchingFields:  batchFields,
				}
			}
		}

		// Index this row for later occurrences. First occurrence wins.
		if email != "" {
			if _, seen := batchByEmail[email]; !seen {
				batchByEmail[email] = c.Index
			}
		}
		if phone != "" {
			if _, seen := batchByPhone[phone]; !seen {
				batchByPhone[phone] = c.Index
			}
		}
	}

	return found
}
