package telemetry

import (
	"context"

	"github.com/probelab/webpilot/internal/types"
)

// slowResourceMs is the duration beyond which a resource is reported.
const slowResourceMs = 1000

// perfScript reads navigation, paint, layout-shift, long-task and resource
// timing primitives in one evaluation. All vitals are derived once per
// capture call, not incrementally.
const perfScript = `(() => { /* perfCapture */
	const nav = performance.getEntriesByType('navigation')[0] || {};
	const paint = {};
	performance.getEntriesByType('paint').forEach(e => { paint[e.name] = e.startTime; });
	const lcpEntries = performance.getEntriesByType('largest-contentful-paint');
	const lcp = lcpEntries.length ? lcpEntries[lcpEntries.length - 1].startTime : 0;
	const firstInput = performance.getEntriesByType('first-input')[0];
	const shifts = performance.getEntriesByType('layout-shift')
		.filter(s => !s.hadRecentInput)
		.map(s => s.value);
	const longTasks = performance.getEntriesByType('longtask').map(t => t.duration);
	const resources = performance.getEntriesByType('resource').map(r => ({
		name: r.name,
		durationMs: r.duration,
		transferSize: r.transferSize || 0,
		initiator: r.initiatorType,
	}));
	return {
		fetchStart: nav.fetchStart || 0,
		responseStart: nav.responseStart || 0,
		domInteractive: nav.domInteractive || 0,
		domContentLoaded: nav.domContentLoadedEventEnd || 0,
		loadEventEnd: nav.loadEventEnd || 0,
		firstContentfulPaint: paint['first-contentful-paint'] || 0,
		largestContentfulPaint: lcp,
		firstInputDelay: firstInput ? (firstInput.processingStart - firstInput.startTime) : 0,
		layoutShifts: shifts,
		longTasks: longTasks,
		resources: resources,
	};
})()`

type perfRaw struct {
	FetchStart             float64                `json:"fetchStart"`
	ResponseStart          float64                `json:"responseStart"`
	DOMInteractive         float64                `json:"domInteractive"`
	DOMContentLoaded       float64                `json:"domContentLoaded"`
	LoadEventEnd           float64                `json:"loadEventEnd"`
	FirstContentfulPaint   float64                `json:"firstContentfulPaint"`
	LargestContentfulPaint float64                `json:"largestContentfulPaint"`
	FirstInputDelay        float64                `json:"firstInputDelay"`
	LayoutShifts           []float64              `json:"layoutShifts"`
	LongTasks              []float64              `json:"longTasks"`
	Resources              []types.ResourceTiming `json:"resources"`
}

// CapturePerformance reads the timing primitives and derives the vitals.
func (c *Collector) CapturePerformance(ctx context.Context) (*types.PerformanceMetrics, error) {
	var raw perfRaw
	if err := c.page.Evaluate(ctx, perfScript, &raw); err != nil {
		return nil, err
	}
	m := &types.PerformanceMetrics{
		LoadTimeMs:            raw.LoadEventEnd - raw.FetchStart,
		DOMContentLoadedMs:    raw.DOMContentLoaded - raw.FetchStart,
		TimeToFirstByteMs:     raw.ResponseStart - raw.FetchStart,
		FirstContentfulPaint:  raw.FirstContentfulPaint,
		LargestContentful:     raw.LargestContentfulPaint,
		FirstInputDelayMs:     raw.FirstInputDelay,
		CumulativeLayoutShift: sum(raw.LayoutShifts),
		TimeToInteractiveMs:   raw.DOMInteractive - raw.FetchStart,
		TotalBlockingTimeMs:   TotalBlockingTime(raw.LongTasks),
		ResourceCount:         len(raw.Resources),
		SlowResources:         SlowResources(raw.Resources),
		DuplicateResources:    DuplicateResources(raw.Resources),
	}
	return m, nil
}

// TotalBlockingTime sums the portion of each long task beyond the 50ms
// responsiveness budget.
func TotalBlockingTime(longTasks []float64) float64 {
	var total float64
	for _, d := range longTasks {
		if d > 50 {
			total += d - 50
		}
	}
	return total
}

// SlowResources returns resources slower than the reporting threshold.
func SlowResources(resources []types.ResourceTiming) []types.ResourceTiming {
	var slow []types.ResourceTiming
	for _, r := range resources {
		if r.DurationMs > slowResourceMs {
			slow = append(slow, r)
		}
	}
	return slow
}

// DuplicateResources returns URLs fetched more than once.
func DuplicateResources(resources []types.ResourceTiming) []string {
	counts := map[string]int{}
	for _, r := range resources {
		counts[r.Name]++
	}
	var dups []string
	seen := map[string]bool{}
	for _, r := range resources {
		if counts[r.Name] > 1 && !seen[r.Name] {
			seen[r.Name] = true
			dups = append(dups, r.Name)
		}
	}
	return dups
}

func sum(vals []float64) float64 {
	var total float64
	for _, v := range vals {
		total += v
	}
	return total
}
