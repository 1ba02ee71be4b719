package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/augustalabs/summit-outreach/internal/config"
	"github.com/augustalabs/summit-outreach/internal/repository"
)

// Collector walks the paginated listing and upserts every discovered profile
// into the store as it goes, so a crash during discovery loses nothing.
// De-duplication is delegated to the store's upsert; the in-run seen set only
// avoids redundant round trips.
type Collector struct {
	lister Lister
	store  repository.AttendeesRepository
	cfg    config.PipelineConfig
}

// NewCollector builds a discovery collector.
func NewCollector(lister Lister, store repository.AttendeesRepository, cfg config.PipelineConfig) *Collector {
	return &Collector{lister: lister, store: store, cfg: cfg}
}

// Collect drives the listing until a page contributes no identifiers the run
// has not already seen, the page budget runs out, or ctx is cancelled.
// Returns the number of profiles newly inserted into the store. A failed page
// aborts discovery for the run but leaves stored rows intact.
func (c *Collector) Collect(ctx context.Context) (int, error) {
	seen := make(map[string]struct{})
	inserted := 0

	for page := 1; c.cfg.MaxPages <= 0 || page <= c.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}

		refs, err := c.fetchPage(ctx, page)
		if err != nil {
			return inserted, err
		}

		fresh := 0
		for _, ref := range refs {
			if ref.ProfileID == "" {
				continue
			}
			if _, ok := seen[ref.ProfileID]; ok {
				continue
			}
			seen[ref.ProfileID] = struct{}{}
			fresh++

			ok, err := c.store.UpsertDiscovered(ctx, ref.ProfileID, ref.ProfileURL)
			if err != nil {
				return inserted, fmt.Errorf("store discovered profile %s: %w", ref.ProfileID, err)
			}
			if ok {
				inserted++
			}
		}

		log.Printf("discovery page=%d profiles=%d new=%d", page, len(refs), fresh)
		if fresh == 0 {
			break
		}
	}

	return inserted, nil
}

// fetchPage retries transient listing failures with bounded exponential
// backoff; a permanent failure or exhausted budget aborts discovery.
func (c *Collector) fetchPage(ctx context.Context, page int) ([]ProfileRef, error) {
	for attempt := 0; ; attempt++ {
		refs, err := c.lister.NextPage(ctx, page)
		if err == nil {
			return refs, nil
		}

		f := classify(StepDiscover, err)
		if f.Permanent || attempt+1 >= c.cfg.MaxRetries {
			return nil, fmt.Errorf("discovery page %d: %w", page, err)
		}

		log.Printf("discovery page=%d attempt=%d retrying: %v", page, attempt+1, err)
		if err := sleepCtx(ctx, backoffDelay(c.cfg.RetryBaseDelay, c.cfg.RetryMultiplier, attempt)); err != nil {
			return nil, err
		}
	}
}
