// Package telemetry collects console, network, performance, accessibility,
// visual, security, SEO and third-party signals for one run. One Collector
// attaches to one page for the run's whole lifetime; listeners append
// passively while explicit checks run on demand.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/probelab/webpilot/internal/page"
	"github.com/probelab/webpilot/internal/types"
)

// maxBufferedEntries bounds each passive buffer; beyond it the oldest
// entries are dropped so a chatty page cannot grow memory without limit.
const maxBufferedEntries = 2000

// Collector is the single-writer aggregator for one run's telemetry.
type Collector struct {
	mu      sync.Mutex
	page    page.Page
	console []types.ConsoleEntry
	network []types.NetworkEntry
	cancels []func()

	// Vision is an optional design-review pass; its findings are additive
	// and never replace the programmatic visual checks.
	Vision VisionModel
	// Design, when set, enables the design-spec comparison.
	Design *DesignSpec
}

// VisionModel reviews a screenshot for design-coherence findings.
type VisionModel interface {
	Review(ctx context.Context, screenshot []byte) ([]types.VisualIssue, error)
}

// Attach wires passive console/network listeners to the page and returns
// the collector. Call Detach when the run ends.
func Attach(p page.Page) *Collector {
	c := &Collector{page: p}
	c.cancels = append(c.cancels, p.OnConsole(c.onConsole))
	c.cancels = append(c.cancels, p.OnNetwork(c.onNetwork))
	return c
}

// Detach removes the listeners. Buffered entries remain readable.
func (c *Collector) Detach() {
	c.mu.Lock()
	cancels := c.cancels
	c.cancels = nil
	c.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// onConsole keeps every error and warning in order of occurrence; no
// deduplication, the log tab wants the raw sequence.
func (c *Collector) onConsole(ev page.ConsoleEvent) {
	if ev.Level != "error" && ev.Level != "warning" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.console = appendBounded(c.console, types.ConsoleEntry{
		Level:     ev.Level,
		Text:      ev.Text,
		URL:       ev.URL,
		Timestamp: ev.Timestamp,
	})
}

func (c *Collector) onNetwork(ev page.NetworkEvent) {
	if !ev.Failed && ev.Status < 400 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.network = appendBounded(c.network, types.NetworkEntry{
		URL:        ev.URL,
		Method:     ev.Method,
		Status:     ev.Status,
		Failed:     ev.Failed,
		ErrorText:  ev.ErrorText,
		Duration:   ev.Duration,
		ResourceTy: ev.ResourceType,
		Timestamp:  ev.Timestamp,
	})
}

func appendBounded[T any](buf []T, v T) []T {
	if len(buf) >= maxBufferedEntries {
		buf = buf[1:]
	}
	return append(buf, v)
}

// Counts returns the passive totals, for live status pushes.
func (c *Collector) Counts() (consoleErrors, networkErrors int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.console), len(c.network)
}

// Collect runs every active check and assembles the full report. Checks are
// isolated: a failure in one is recorded as a collection note and the rest
// still run.
func (c *Collector) Collect(ctx context.Context) *types.ComprehensiveTestResults {
	results := &types.ComprehensiveTestResults{CollectedAt: time.Now()}

	c.mu.Lock()
	results.ConsoleErrors = append([]types.ConsoleEntry{}, c.console...)
	results.NetworkErrors = append([]types.NetworkEntry{}, c.network...)
	c.mu.Unlock()

	c.safely(results, "performance", func() error {
		perf, err := c.CapturePerformance(ctx)
		if err != nil {
			return err
		}
		results.Performance = perf
		return nil
	})
	c.safely(results, "accessibility", func() error {
		issues, err := c.CheckAccessibility(ctx)
		if err != nil {
			return err
		}
		results.Accessibility = issues
		return nil
	})
	c.safely(results, "dom-health", func() error {
		health, err := c.CheckDOMHealth(ctx)
		if err != nil {
			return err
		}
		results.DOMHealth = health
		return nil
	})
	c.safely(results, "visual", func() error {
		issues, err := c.CheckVisual(ctx)
		if err != nil {
			return err
		}
		results.Visual = issues
		return nil
	})
	c.safely(results, "security", func() error {
		issues, err := c.CheckSecurity(ctx)
		if err != nil {
			return err
		}
		results.Security = issues
		return nil
	})
	c.safely(results, "seo", func() error {
		issues, err := c.CheckSEO(ctx)
		if err != nil {
			return err
		}
		results.SEO = issues
		return nil
	})
	c.safely(results, "third-party", func() error {
		deps, err := c.CheckThirdParties(ctx)
		if err != nil {
			return err
		}
		results.ThirdParties = deps
		return nil
	})

	results.WCAG = scoreFromIssues(results.Accessibility, results.DOMHealth)
	return results
}

// safely runs one check and converts any error or panic into a collection
// note instead of aborting the report.
func (c *Collector) safely(results *types.ComprehensiveTestResults, name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			results.CollectionNotes = append(results.CollectionNotes,
				fmt.Sprintf("%s check panicked: %v", name, r))
		}
	}()
	if err := fn(); err != nil {
		results.CollectionNotes = append(results.CollectionNotes,
			fmt.Sprintf("%s check failed: %v", name, err))
	}
}
