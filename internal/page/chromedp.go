package page

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/probelab/webpilot/internal/types"
)

// ChromePage implements Page on a dedicated chromedp browser context.
type ChromePage struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	consoleFns map[int]func(ConsoleEvent)
	networkFns map[int]func(NetworkEvent)
	nextSub    int
	// request start times keyed by request ID, for response durations.
	started map[network.RequestID]requestStart
}

type requestStart struct {
	method string
	url    string
	at     time.Time
}

// webSocketSentinel marks the page once any script opens a WebSocket.
// Diagnosers read window.__wpWebSocketSeen to tell live-socket pages apart
// from ones that merely poll. The wrapper keeps the original constructor's
// prototype so instanceof checks in page scripts still hold.
const webSocketSentinel = `(() => {
	const Native = window.WebSocket;
	if (!Native) { return; }
	const Wrapped = function (...args) {
		window.__wpWebSocketSeen = true;
		return new Native(...args);
	};
	Wrapped.prototype = Native.prototype;
	for (const key of ['CONNECTING', 'OPEN', 'CLOSING', 'CLOSED']) {
		Wrapped[key] = Native[key];
	}
	window.WebSocket = Wrapped;
})()`

// ChromeOptions configures the launched browser.
type ChromeOptions struct {
	Headless   bool
	Device     types.DeviceProfile
	ExtraFlags []string
}

// NewChromePage launches a browser tab and wires event forwarding.
func NewChromePage(parent context.Context, opts ChromeOptions) (*ChromePage, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.Device.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.Device.UserAgent))
	}
	for _, f := range opts.ExtraFlags {
		name, value, found := strings.Cut(strings.TrimPrefix(f, "--"), "=")
		if !found {
			allocOpts = append(allocOpts, chromedp.Flag(name, true))
			continue
		}
		allocOpts = append(allocOpts, chromedp.Flag(name, value))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, ctxCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		ctxCancel()
		allocCancel()
	}

	p := &ChromePage{
		ctx:        ctx,
		cancel:     cancel,
		consoleFns: map[int]func(ConsoleEvent){},
		networkFns: map[int]func(NetworkEvent){},
		started:    map[network.RequestID]requestStart{},
	}

	actions := []chromedp.Action{
		network.Enable(),
		cdppage.Enable(),
		// Installed before any page script runs so socket use is never missed.
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := cdppage.AddScriptToEvaluateOnNewDocument(webSocketSentinel).Do(ctx)
			return err
		}),
	}
	if opts.Device.Width > 0 && opts.Device.Height > 0 {
		actions = append(actions, chromedp.EmulateViewport(
			int64(opts.Device.Width), int64(opts.Device.Height),
			chromedp.EmulateScale(1)))
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	chromedp.ListenTarget(ctx, p.handleEvent)
	return p, nil
}

func (p *ChromePage) handleEvent(ev any) {
	switch e := ev.(type) {
	case *runtime.EventConsoleAPICalled:
		var parts []string
		for _, arg := range e.Args {
			if len(arg.Value) > 0 {
				parts = append(parts, string(arg.Value))
			} else if arg.Description != "" {
				parts = append(parts, arg.Description)
			}
		}
		p.emitConsole(ConsoleEvent{
			Level:     string(e.Type),
			Text:      strings.Join(parts, " "),
			Timestamp: time.Now(),
		})
	case *runtime.EventExceptionThrown:
		text := "uncaught exception"
		if e.ExceptionDetails != nil {
			text = e.ExceptionDetails.Text
			if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
				text = e.ExceptionDetails.Exception.Description
			}
		}
		p.emitConsole(ConsoleEvent{Level: "error", Text: text, Timestamp: time.Now()})
	case *network.EventRequestWillBeSent:
		p.mu.Lock()
		p.started[e.RequestID] = requestStart{method: e.Request.Method, url: e.Request.URL, at: time.Now()}
		p.mu.Unlock()
	case *network.EventResponseReceived:
		start := p.takeStart(e.RequestID)
		p.emitNetwork(NetworkEvent{
			URL:          e.Response.URL,
			Method:       start.method,
			Status:       int(e.Response.Status),
			ResourceType: string(e.Type),
			Duration:     durationSince(start.at),
			Timestamp:    time.Now(),
		})
	case *network.EventLoadingFailed:
		start := p.takeStart(e.RequestID)
		p.emitNetwork(NetworkEvent{
			URL:          start.url,
			Method:       start.method,
			Failed:       true,
			ErrorText:    e.ErrorText,
			ResourceType: string(e.Type),
			Duration:     durationSince(start.at),
			Timestamp:    time.Now(),
		})
	}
}

func durationSince(start time.Time) time.Duration {
	if start.IsZero() {
		return 0
	}
	return time.Since(start)
}

func (p *ChromePage) takeStart(id network.RequestID) requestStart {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.started[id]
	delete(p.started, id)
	return s
}

func (p *ChromePage) emitConsole(ev ConsoleEvent) {
	p.mu.Lock()
	fns := make([]func(ConsoleEvent), 0, len(p.consoleFns))
	for _, fn := range p.consoleFns {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (p *ChromePage) emitNetwork(ev NetworkEvent) {
	p.mu.Lock()
	fns := make([]func(NetworkEvent), 0, len(p.networkFns))
	for _, fn := range p.networkFns {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Navigate loads url and waits for the load event.
func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := p.bound(ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// queryScript extracts element descriptors for a selector in one evaluation
// so a Query round-trip costs a single CDP call.
const queryScript = `(() => {
	const sel = %q;
	const out = [];
	document.querySelectorAll(sel).forEach((el, i) => {
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		const attrs = {};
		for (const a of el.attributes) { attrs[a.name] = a.value; }
		out.push({
			selector: sel,
			tag: el.tagName.toLowerCase(),
			text: (el.innerText || '').slice(0, 200),
			attrs: attrs,
			visible: style.display !== 'none' && style.visibility !== 'hidden' && rect.width > 0 && rect.height > 0,
			x: rect.x, y: rect.y, width: rect.width, height: rect.height,
		});
	});
	return out;
})()`

func (p *ChromePage) Query(ctx context.Context, selector string) ([]Element, error) {
	var out []Element
	if err := p.Evaluate(ctx, fmt.Sprintf(queryScript, selector), &out); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	return out, nil
}

func (p *ChromePage) Evaluate(ctx context.Context, script string, out any) error {
	runCtx, cancel := p.bound(ctx)
	defer cancel()
	var raw []byte
	err := chromedp.Run(runCtx, chromedp.Evaluate(script, &raw,
		func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
			return ep.WithReturnByValue(true).WithAwaitPromise(true)
		}))
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode evaluate result: %w", err)
	}
	return nil
}

func (p *ChromePage) Screenshot(ctx context.Context) ([]byte, error) {
	runCtx, cancel := p.bound(ctx)
	defer cancel()
	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.FullScreenshot(&buf, 80)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

func (p *ChromePage) Click(ctx context.Context, selector string) error {
	runCtx, cancel := p.bound(ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

func (p *ChromePage) Type(ctx context.Context, selector, value string) error {
	runCtx, cancel := p.bound(ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.SendKeys(selector, value, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("type into %q: %w", selector, err)
	}
	return nil
}

func (p *ChromePage) OnConsole(fn func(ConsoleEvent)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.consoleFns[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.consoleFns, id)
	}
}

func (p *ChromePage) OnNetwork(fn func(NetworkEvent)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.networkFns[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.networkFns, id)
	}
}

func (p *ChromePage) Close() error {
	p.cancel()
	return nil
}

// bound ties a chromedp command to both the tab context and the caller's
// deadline.
func (p *ChromePage) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(p.ctx, deadline)
	}
	return context.WithCancel(p.ctx)
}
