package dub

import (
	"context"
	"sync"

	"dubtrack/internal/catalog"
	"dubtrack/internal/logging"
)

// BatchResult pairs one entity's verdict with whatever went wrong while
// persisting it. A failed item never aborts its siblings.
type BatchResult struct {
	Verdict Verdict
	Err     error
}

// ResolveBatch resolves many entities through a bounded worker pool. The
// bound exists because several adapters hit rate-limited endpoints; more
// workers would trip limits across entities even though each entity's own
// calls are serialized. Results are positionally aligned with the input.
func (r *Resolver) ResolveBatch(ctx context.Context, entities []catalog.Entity, workers int) []BatchResult {
	if workers <= 0 {
		workers = r.workers
	}
	if workers > len(entities) {
		workers = len(entities)
	}

	results := make([]BatchResult, len(entities))
	if len(entities) == 0 {
		return results
	}

	type job struct {
		index  int
		entity catalog.Entity
	}
	jobs := make(chan job)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				verdict, err := r.Resolve(ctx, item.entity)
				results[item.index] = BatchResult{Verdict: verdict, Err: err}
				if err != nil {
					r.logger.Warn("batch item persistence failed",
						logging.Int64("entity_id", item.entity.ExternalID),
						logging.Error(err))
				}
			}
		}()
	}

submit:
	for i, entity := range entities {
		select {
		case jobs <- job{index: i, entity: entity}:
		case <-ctx.Done():
			break submit
		}
	}
	close(jobs)
	wg.Wait()
	return results
}
