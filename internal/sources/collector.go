package sources

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"trendpulse/internal/core"
	"trendpulse/internal/logger"
)

// AdapterHealth tracks the outcome of an adapter's recent fetches.
type AdapterHealth struct {
	Name         string    `json:"name"`
	LastSuccess  time.Time `json:"last_success"`
	LastError    string    `json:"last_error,omitempty"`
	LastErrorAt  time.Time `json:"last_error_at"`
	ItemsLastRun int       `json:"items_last_run"`
	Healthy      bool      `json:"healthy"`
}

// Failing reports whether the adapter's most recent fetch failed.
func (h AdapterHealth) Failing() bool {
	return !h.Healthy && !h.LastErrorAt.IsZero()
}

// CollectResult holds the items gathered by one Collect call.
type CollectResult struct {
	Items        []core.TrendItem
	Skipped      int
	Reasons      map[string]int
	SourceErrors map[string]error
}

// Collector fans out to all adapters concurrently and tolerates individual
// adapter failures.
type Collector struct {
	adapters []Adapter
	timeout  time.Duration
	log      *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	health map[string]*AdapterHealth
}

// NewCollector creates a collector. Each adapter is bounded by timeout.
func NewCollector(adapters []Adapter, timeout time.Duration) *Collector {
	sorted := append([]Adapter(nil), adapters...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name() < sorted[j].Name() })

	health := make(map[string]*AdapterHealth, len(sorted))
	for _, a := range sorted {
		health[a.Name()] = &AdapterHealth{Name: a.Name()}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Collector{
		adapters: sorted,
		timeout:  timeout,
		log:      logger.With("collector"),
		now:      time.Now,
		health:   health,
	}
}

// Adapters returns the adapter names in collection order.
func (c *Collector) Adapters() []string {
	names := make([]string, len(c.adapters))
	for i, a := range c.adapters {
		names[i] = a.Name()
	}
	return names
}

type fetchOutcome struct {
	items []core.TrendItem
	err   error
}

// Collect fetches from every adapter. Failing adapters are logged and their
// items excluded; only cancellation of ctx fails the whole call.
func (c *Collector) Collect(ctx context.Context, markets, keywords []string) (*CollectResult, error) {
	outcomes := make([]fetchOutcome, len(c.adapters))

	var g errgroup.Group
	for i, adapter := range c.adapters {
		i, adapter := i, adapter
		g.Go(func() error {
			outcomes[i] = c.fetchOne(ctx, adapter, markets, keywords)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &CollectResult{
		Reasons:      make(map[string]int),
		SourceErrors: make(map[string]error),
	}
	for i, adapter := range c.adapters {
		out := outcomes[i]
		if out.err != nil {
			result.SourceErrors[adapter.Name()] = out.err
			c.recordFailure(adapter.Name(), out.err)
			c.log.Warn("Source unavailable", "source", adapter.Name(), "error", out.err)
			continue
		}

		kept := 0
		for _, item := range out.items {
			if err := item.Validate(); err != nil {
				result.Skipped++
				result.Reasons["missing_fields"]++
				continue
			}
			item.Market = strings.ToUpper(strings.TrimSpace(item.Market))
			result.Items = append(result.Items, item.WithID())
			kept++
		}
		c.recordSuccess(adapter.Name(), kept)
	}

	c.log.Info("Collection completed",
		"adapters", len(c.adapters),
		"items", len(result.Items),
		"skipped", result.Skipped,
		"failed_sources", len(result.SourceErrors),
	)
	return result, nil
}

// fetchOne runs a single adapter under its own deadline, converting errors,
// timeouts and panics into ErrSourceUnavailable.
func (c *Collector) fetchOne(ctx context.Context, adapter Adapter, markets, keywords []string) fetchOutcome {
	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan fetchOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchOutcome{err: fmt.Errorf("%w: %s panicked: %v", core.ErrSourceUnavailable, adapter.Name(), r)}
			}
		}()
		items, err := adapter.Fetch(actx, markets, keywords)
		if err != nil {
			err = fmt.Errorf("%w: %s: %v", core.ErrSourceUnavailable, adapter.Name(), err)
		}
		done <- fetchOutcome{items: items, err: err}
	}()

	select {
	case out := <-done:
		return out
	case <-actx.Done():
		return fetchOutcome{err: fmt.Errorf("%w: %s: %v", core.ErrSourceUnavailable, adapter.Name(), actx.Err())}
	}
}

func (c *Collector) recordSuccess(name string, items int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.health[name]
	h.LastSuccess = c.now()
	h.ItemsLastRun = items
	h.Healthy = true
}

func (c *Collector) recordFailure(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.health[name]
	h.LastError = err.Error()
	h.LastErrorAt = c.now()
	h.ItemsLastRun = 0
	h.Healthy = false
}

// Health returns a snapshot of per-adapter health, sorted by name.
func (c *Collector) Health() []AdapterHealth {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]AdapterHealth, 0, len(c.health))
	for _, a := range c.adapters {
		out = append(out, *c.health[a.Name()])
	}
	return out
}

// CheckHealth checks every adapter concurrently.
func (c *Collector) CheckHealth(ctx context.Context) map[string]bool {
	results := make(map[string]bool, len(c.adapters))
	var mu sync.Mutex
	var g errgroup.Group
	for _, adapter := range c.adapters {
		adapter := adapter
		g.Go(func() error {
			hctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			ok := adapter.HealthCheck(hctx)
			mu.Lock()
			results[adapter.Name()] = ok
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
