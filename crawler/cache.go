package crawler

import (
	"context"
	"sync"

	"github.com/lukemcguire/linkscout/audit"
	"github.com/lukemcguire/linkscout/result"
)

// outcomeCache remembers validation outcomes across pages so a URL linked
// from several pages is probed once per run.
type outcomeCache struct {
	next   audit.Validator
	onHit  func(result.ValidationOutcome)
	mu     sync.Mutex
	byURL  map[string]result.ValidationOutcome
	hits   int
	probed int
}

func newOutcomeCache(next audit.Validator, onHit func(result.ValidationOutcome)) *outcomeCache {
	return &outcomeCache{
		next:  next,
		onHit: onHit,
		byURL: make(map[string]result.ValidationOutcome),
	}
}

// Validate answers cached URLs directly and forwards the rest, once each.
func (c *outcomeCache) Validate(ctx context.Context, candidates []result.LinkCandidate) []result.ValidationOutcome {
	outcomes := make([]result.ValidationOutcome, len(candidates))
	var misses []result.LinkCandidate
	var missIdx []int
	var hits []result.ValidationOutcome

	c.mu.Lock()
	for i, cand := range candidates {
		if o, ok := c.byURL[cand.NormalizedURL]; ok {
			outcomes[i] = o
			hits = append(hits, o)
			c.hits++
			continue
		}
		misses = append(misses, cand)
		missIdx = append(missIdx, i)
	}
	c.mu.Unlock()

	if c.onHit != nil {
		for _, o := range hits {
			c.onHit(o)
		}
	}

	if len(misses) == 0 {
		return outcomes
	}
	fresh := c.next.Validate(ctx, misses)

	// Outcomes produced after cancellation describe the cancellation, not
	// the link.
	keep := ctx.Err() == nil
	c.mu.Lock()
	for j, o := range fresh {
		outcomes[missIdx[j]] = o
		if keep {
			c.byURL[misses[j].NormalizedURL] = o
			c.probed++
		}
	}
	c.mu.Unlock()
	return outcomes
}

// Stats returns how many lookups were answered from the cache and how
// many URLs were probed.
func (c *outcomeCache) Stats() (hits, probed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.probed
}
