package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// DefaultChunkSize bounds how many records one store commit carries.
const DefaultChunkSize = 500

// Persister commits accepted records to the store in fixed-size chunks,
// strictly in input order. Within a chunk, record order is preserved so the
// ids returned by the store correlate positionally with the submitted
// records; the duplicate marker depends on that.
type Persister struct {
	store     LeadStore
	chunkSize int
	progress  ProgressFunc
	log       *slog.Logger
}

// NewPersister builds a persister. A nil progress callback and a zero or
// negative chunk size fall back to safe defaults.
func NewPersister(store LeadStore, chunkSize int, progress ProgressFunc, log *slog.Logger) *Persister {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if progress == nil {
		progress = func(int) {}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Persister{store: store, chunkSize: chunkSize, progress: progress, log: log}
}

// Persist commits records chunk by chunk and returns the store-assigned ids,
// aligned index-for-index with the records that were committed. A chunk
// failure aborts the remaining chunks immediately; already-committed chunks
// stay committed, so len(ids) reports exactly how far the run got.
// Cancellation is checked between chunks, never mid-commit.
func (p *Persister) Persist(ctx context.Context, records []*Record) ([]uuid.UUID, error) {
	total := len(records)
	ids := make([]uuid.UUID, 0, total)
	if total == 0 {
		p.progress(100)
		return ids, nil
	}

	for start := 0; start < total; start += p.chunkSize {
		if err := ctx.Err(); err != nil {
			return ids, fmt.Errorf("import cancelled after %d records: %w", len(ids), err)
		}

		end := start + p.chunkSize
		if end > total {
			end = total
		}
		chunk := records[start:end]

		chunkIDs, err := p.store.InsertLeads(ctx, chunk)
		if err != nil {
			return ids, fmt.Errorf("insert chunk %d-%d: %w", start+1, end, err)
		}
		if len(chunkIDs) != len(chunk) {
			return ids, fmt.Errorf("insert chunk %d-%d: store returned %d ids for %d records",
				start+1, end, len(chunkIDs), len(chunk))
		}
		ids = append(ids, chunkIDs...)

		// Persistence owns the 50-100% half of the progress scale.
		p.progress(50 + (50*len(ids))/total)
		p.log.Debug("chunk committed", "from", start+1, "to", end, "total", total)
	}

	return ids, nil
}
