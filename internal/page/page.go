// Package page defines the browser capability port the engine drives.
// The engine never talks to a browser directly; diagnosers, the telemetry
// collector and the step executor all work against Page.
package page

import (
	"context"
	"time"
)

// Element describes one DOM element returned by Query.
type Element struct {
	Selector string            `json:"selector"`
	Tag      string            `json:"tag"`
	Text     string            `json:"text,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Visible  bool              `json:"visible"`
	X        float64           `json:"x"`
	Y        float64           `json:"y"`
	Width    float64           `json:"width"`
	Height   float64           `json:"height"`
}

// Attr returns an attribute value, or "" when absent.
func (e Element) Attr(name string) string {
	if e.Attrs == nil {
		return ""
	}
	return e.Attrs[name]
}

// ConsoleEvent is one console API call observed on the page.
type ConsoleEvent struct {
	Level     string
	Text      string
	URL       string
	Timestamp time.Time
}

// NetworkEvent is one completed or failed HTTP exchange.
type NetworkEvent struct {
	URL          string
	Method       string
	Status       int
	Failed       bool
	ErrorText    string
	ResourceType string
	Duration     time.Duration
	Timestamp    time.Time
}

// Page is the browser capability consumed by the engine. Exactly one Page is
// active per run; implementations do not need to be safe for concurrent
// command calls, but event callbacks may fire from other goroutines.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Query returns elements matching a CSS selector. A selector that
	// matches nothing returns an empty slice, not an error.
	Query(ctx context.Context, selector string) ([]Element, error)
	// Evaluate runs script in the page and decodes its JSON result into out.
	// Pass a nil out to discard the result.
	Evaluate(ctx context.Context, script string, out any) error
	Screenshot(ctx context.Context) ([]byte, error)
	// Click and Type are the element-level actions the executor uses.
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, value string) error
	// OnConsole and OnNetwork register passive listeners and return an
	// unsubscribe func.
	OnConsole(fn func(ConsoleEvent)) (cancel func())
	OnNetwork(fn func(NetworkEvent)) (cancel func())
	Close() error
}
