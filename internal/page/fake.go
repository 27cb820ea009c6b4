package page

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Fake is a scripted in-memory Page for tests. Selectors map to canned
// elements, evaluate scripts match by substring, and errors can be injected
// per selector or script fragment.
type Fake struct {
	mu sync.Mutex

	// Elements maps a CSS selector to the elements Query returns for it.
	Elements map[string][]Element
	// EvalResults maps a script substring to the value Evaluate decodes
	// into out (via the supplied fill func).
	EvalResults map[string]func(out any) error
	// FailSelectors makes Query return an error for matching selectors.
	FailSelectors map[string]error
	// FailScripts makes Evaluate return an error when the script contains
	// the key.
	FailScripts map[string]error
	// ClickErr / TypeErr inject action failures keyed by selector.
	ClickErr map[string]error
	TypeErr  map[string]error

	// Shot is returned by Screenshot; defaults to a small stub.
	Shot []byte

	NavigatedTo []string
	Clicked     []string
	Typed       map[string]string

	consoleFns []func(ConsoleEvent)
	networkFns []func(NetworkEvent)
	closed     bool
}

// NewFake returns an empty scripted page.
func NewFake() *Fake {
	return &Fake{
		Elements:      map[string][]Element{},
		EvalResults:   map[string]func(out any) error{},
		FailSelectors: map[string]error{},
		FailScripts:   map[string]error{},
		ClickErr:      map[string]error{},
		TypeErr:       map[string]error{},
		Typed:         map[string]string{},
		Shot:          []byte("png-stub"),
	}
}

// Add registers count elements for a selector with the given tag.
func (f *Fake) Add(selector, tag string, count int) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	els := make([]Element, count)
	for i := range els {
		els[i] = Element{Selector: selector, Tag: tag, Visible: true, Width: 100, Height: 20}
	}
	f.Elements[selector] = els
	return f
}

// AddElement registers one fully specified element.
func (f *Fake) AddElement(selector string, el Element) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	if el.Selector == "" {
		el.Selector = selector
	}
	f.Elements[selector] = append(f.Elements[selector], el)
	return f
}

func (f *Fake) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.NavigatedTo = append(f.NavigatedTo, url)
	return nil
}

func (f *Fake) Query(_ context.Context, selector string) ([]Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for frag, err := range f.FailSelectors {
		if strings.Contains(selector, frag) {
			return nil, err
		}
	}
	if els, ok := f.Elements[selector]; ok {
		return els, nil
	}
	// Comma selectors match the union of their parts, like querySelectorAll.
	var out []Element
	for _, part := range strings.Split(selector, ",") {
		part = strings.TrimSpace(part)
		out = append(out, f.Elements[part]...)
	}
	return out, nil
}

func (f *Fake) Evaluate(_ context.Context, script string, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for frag, err := range f.FailScripts {
		if strings.Contains(script, frag) {
			return err
		}
	}
	for frag, fill := range f.EvalResults {
		if strings.Contains(script, frag) {
			if out == nil {
				return nil
			}
			return fill(out)
		}
	}
	return nil
}

func (f *Fake) Screenshot(context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Shot, nil
}

func (f *Fake) Click(_ context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ClickErr[selector]; err != nil {
		return err
	}
	if _, ok := f.Elements[selector]; !ok {
		return fmt.Errorf("no element matches %q", selector)
	}
	f.Clicked = append(f.Clicked, selector)
	return nil
}

func (f *Fake) Type(_ context.Context, selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.TypeErr[selector]; err != nil {
		return err
	}
	if _, ok := f.Elements[selector]; !ok {
		return fmt.Errorf("no element matches %q", selector)
	}
	f.Typed[selector] = value
	return nil
}

func (f *Fake) OnConsole(fn func(ConsoleEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consoleFns = append(f.consoleFns, fn)
	return func() {}
}

func (f *Fake) OnNetwork(fn func(NetworkEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.networkFns = append(f.networkFns, fn)
	return func() {}
}

// EmitConsole pushes a console event to subscribers, as a live page would.
func (f *Fake) EmitConsole(level, text string) {
	f.mu.Lock()
	fns := append([]func(ConsoleEvent){}, f.consoleFns...)
	f.mu.Unlock()
	for _, fn := range fns {
		fn(ConsoleEvent{Level: level, Text: text, Timestamp: time.Now()})
	}
}

// EmitNetwork pushes a network event to subscribers.
func (f *Fake) EmitNetwork(ev NetworkEvent) {
	f.mu.Lock()
	fns := append([]func(NetworkEvent){}, f.networkFns...)
	f.mu.Unlock()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	for _, fn := range fns {
		fn(ev)
	}
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
