package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/oak-labs/corpora/internal/domain"
)

const (
	// strandedAfter is how long an item may sit in a non-terminal state
	// before the sweep considers its pipeline dead.
	strandedAfter = 5 * time.Minute

	// sweepBatchSize bounds the items resumed per poll.
	sweepBatchSize = 10
)

// StrandedItemSource lists items stuck mid-pipeline.
type StrandedItemSource interface {
	ListStranded(ctx context.Context, cutoff time.Time, limit int) ([]*domain.KnowledgeItem, error)
}

// IngestionResumer re-runs the pipeline for one stranded item.
type IngestionResumer interface {
	Resume(ctx context.Context, item *domain.KnowledgeItem) error
}

// RecoveryWorker finds items stranded in pending, processing, or
// chunking (typically after a daemon restart) and re-runs their
// ingestion. Items whose source cannot be reconstructed fail over to
// the error state through the normal pipeline.
type RecoveryWorker struct {
	items   StrandedItemSource
	resumer IngestionResumer
}

// NewRecoveryWorker creates a RecoveryWorker instance
func NewRecoveryWorker(items StrandedItemSource, resumer IngestionResumer) *RecoveryWorker {
	return &RecoveryWorker{items: items, resumer: resumer}
}

// ProcessJobs implements the JobProcessor interface
func (w *RecoveryWorker) ProcessJobs(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-strandedAfter)
	stranded, err := w.items.ListStranded(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list stranded items: %w", err)
	}
	if len(stranded) == 0 {
		return nil
	}

	log.Printf("recovery: resuming %d stranded item(s)", len(stranded))
	for _, item := range stranded {
		if err := w.resumer.Resume(ctx, item); err != nil {
			log.Printf("recovery: failed to resume item %s: %v", item.ID, err)
		}
	}
	return nil
}
