package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/TimurManjosov/loanrules/internal/rules"
	"github.com/TimurManjosov/loanrules/internal/telemetry"
)

const loadTimeout = 5 * time.Second

// Loader reads an organization's rules from persistent storage.
// store.Store satisfies it.
type Loader interface {
	ListProgramRules(ctx context.Context, orgID string) ([]rules.ProgramRule, error)
	ListDocumentRules(ctx context.Context, orgID string) ([]rules.DocumentRule, error)
}

// Cache holds one RuleSet per organization for up to ttl. Concurrent misses
// for the same organization share a single load. Failed loads are not cached.
//
// Cache implements eligibility.ProgramRuleSource and eligibility.DocumentRuleSource.
type Cache struct {
	loader   Loader
	ttl      time.Duration
	now      func() time.Time
	log      zerolog.Logger
	notifier *Notifier

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]*RuleSet
	etags   map[string]string // last ETag published per org, survives Invalidate
	gens    map[string]uint64 // bumped by Invalidate; loads from an older generation are not kept
}

// NewCache creates a cache over loader. A ttl of zero disables caching but
// still collapses concurrent loads.
func NewCache(loader Loader, ttl time.Duration, log zerolog.Logger) *Cache {
	return &Cache{
		loader:   loader,
		ttl:      ttl,
		now:      time.Now,
		log:      log.With().Str("component", "rule_cache").Logger(),
		notifier: NewNotifier(),
		entries:  make(map[string]*RuleSet),
		etags:    make(map[string]string),
		gens:     make(map[string]uint64),
	}
}

// Get returns the cached RuleSet for orgID, loading it when absent or expired.
func (c *Cache) Get(ctx context.Context, orgID string) (*RuleSet, error) {
	if rs := c.fresh(orgID); rs != nil {
		return rs, nil
	}
	return c.load(ctx, orgID)
}

// ProgramRules returns the organization's program rules in evaluation order.
func (c *Cache) ProgramRules(ctx context.Context, orgID string) ([]rules.ProgramRule, error) {
	rs, err := c.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return rs.ProgramRules, nil
}

// DocumentRules returns the organization's document rules in evaluation order.
func (c *Cache) DocumentRules(ctx context.Context, orgID string) ([]rules.DocumentRule, error) {
	rs, err := c.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return rs.DocumentRules, nil
}

// Refresh reloads orgID from storage and notifies subscribers if the ETag
// changed. Call it after every rule write. It never joins a load that
// started before the call.
func (c *Cache) Refresh(ctx context.Context, orgID string) (*RuleSet, error) {
	c.Invalidate(orgID)
	c.group.Forget(orgID)
	return c.load(ctx, orgID)
}

// Invalidate drops the cached entry for orgID. Loads already in flight
// still answer their callers but are not cached or published.
func (c *Cache) Invalidate(orgID string) {
	c.mu.Lock()
	c.gens[orgID]++
	delete(c.entries, orgID)
	telemetry.CachedRuleSets.Set(float64(len(c.entries)))
	c.mu.Unlock()
}

// Subscribe registers for ETag changes of orgID.
func (c *Cache) Subscribe(orgID string) (<-chan string, func()) {
	return c.notifier.Subscribe(orgID)
}

func (c *Cache) fresh(orgID string) *RuleSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rs, ok := c.entries[orgID]
	if !ok || c.ttl <= 0 || c.now().Sub(rs.LoadedAt) >= c.ttl {
		return nil
	}
	return rs
}

func (c *Cache) load(ctx context.Context, orgID string) (*RuleSet, error) {
	v, err, _ := c.group.Do(orgID, func() (any, error) {
		// one caller's cancellation must not fail the others sharing this load
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		c.mu.RLock()
		gen := c.gens[orgID]
		c.mu.RUnlock()

		pr, err := c.loader.ListProgramRules(loadCtx, orgID)
		if err != nil {
			return nil, fmt.Errorf("load program rules: %w", err)
		}
		dr, err := c.loader.ListDocumentRules(loadCtx, orgID)
		if err != nil {
			return nil, fmt.Errorf("load document rules: %w", err)
		}

		rs := Build(orgID, pr, dr)
		rs.LoadedAt = c.now().UTC()
		c.store(rs, gen)
		return rs, nil
	})
	if err != nil {
		c.log.Warn().Err(err).Str("org_id", orgID).Msg("rule set load failed")
		return nil, err
	}
	return v.(*RuleSet), nil
}

func (c *Cache) store(rs *RuleSet, gen uint64) {
	c.mu.Lock()
	if c.gens[rs.OrgID] != gen {
		c.mu.Unlock()
		c.log.Debug().Str("org_id", rs.OrgID).Msg("discarding rule set loaded before invalidation")
		return
	}
	c.entries[rs.OrgID] = rs
	telemetry.CachedRuleSets.Set(float64(len(c.entries)))
	prev, seen := c.etags[rs.OrgID]
	c.etags[rs.OrgID] = rs.ETag
	c.mu.Unlock()

	if seen && prev == rs.ETag {
		return
	}
	c.log.Debug().Str("org_id", rs.OrgID).Str("etag", rs.ETag).
		Int("program_rules", len(rs.ProgramRules)).Int("document_rules", len(rs.DocumentRules)).
		Msg("rule set loaded")
	c.notifier.Publish(rs.OrgID, rs.ETag)
}
