package importer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Marker links newly inserted duplicate records to their canonical originals
// after persistence. It runs only when the caller chose to insert duplicates
// rather than skip them. Marking is best-effort: a failed update is logged
// and the import still counts as succeeded, so a record can remain un-flagged
// even though detection found a match.
type Marker struct {
	store LeadStore
	log   *slog.Logger
}

// NewMarker builds a marker.
func NewMarker(store LeadStore, log *slog.Logger) *Marker {
	if log == nil {
		log = slog.Default()
	}
	return &Marker{store: store, log: log}
}

// Mark issues one duplicate-linkage update per inserted record that detection
// flagged. persisted and ids are positionally aligned; idxBySourceRow maps a
// source row index to its position in persisted, which is how a batch-local
// candidate finds the store id its original was just assigned.
func (m *Marker) Mark(ctx context.Context, persisted []*Record, ids []uuid.UUID, candidates map[int]DuplicateCandidate) int {
	idxBySourceRow := make(map[int]int, len(persisted))
	for i, rec := range persisted {
		idxBySourceRow[rec.SourceRowIndex] = i
	}

	marked := 0
	for i, rec := range persisted {
		if i >= len(ids) {
			break // not inserted; the chunk that carried it failed
		}
		cand, ok := candidates[rec.SourceRowIndex]
		if !ok {
			continue
		}

		originalID, ok := m.resolveOriginal(cand, idxBySourceRow, ids)
		if !ok {
			continue
		}

		if err := m.store.MarkDuplicate(ctx, ids[i], originalID, cand.MatchingFields); err != nil {
			m.log.Warn("duplicate marking failed",
				"lead_id", ids[i],
				"original_id", originalID,
				"error", err,
			)
			continue
		}
		marked++
	}
	return marked
}

// resolveOriginal finds the canonical record's store id: the pre-existing
// lead when there is one, otherwise the id just assigned to the earlier row
// of the same batch.
func (m *Marker) resolveOriginal(cand DuplicateCandidate, idxBySourceRow map[int]int, ids []uuid.UUID) (uuid.UUID, bool) {
	if cand.MatchedExistingID != nil {
		return *cand.MatchedExistingID, true
	}
	pos, ok := idxBySourceRow[cand.MatchedRowIndex]
	if !ok || pos >= len(ids) {
		return uuid.UUID{}, false
	}
	return ids[pos], true
}
