// Package output renders CLI text. All terminal writes funnel through one
// Printer so sections stay visually separated and colors degrade cleanly
// when the output is not a TTY.
package output

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

type Printer struct {
	mu   sync.Mutex
	out  io.Writer
	last outputKind

	app    *color.Color
	detail *color.Color
	good   *color.Color
	warn   *color.Color
	bad    *color.Color
}

type outputKind int

const (
	outputNone outputKind = iota
	outputApp
	outputDetail
)

// NewPrinter creates a Printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = io.Discard
	}
	return &Printer{
		out:    out,
		app:    color.New(color.Bold),
		detail: color.New(color.Faint),
		good:   color.New(color.FgGreen),
		warn:   color.New(color.FgYellow),
		bad:    color.New(color.FgRed, color.Bold),
	}
}

// App writes a bold top-level line.
func (p *Printer) App(text string) {
	p.write(outputApp, p.app, text)
}

func (p *Printer) Appf(format string, args ...any) {
	p.App(fmt.Sprintf(format, args...))
}

// Detail writes an indented faint line under the current section.
func (p *Printer) Detail(text string) {
	if text == "" {
		return
	}
	p.write(outputDetail, p.detail, "  "+text)
}

func (p *Printer) Detailf(format string, args ...any) {
	p.Detail(fmt.Sprintf(format, args...))
}

// Pass writes a green check line.
func (p *Printer) Pass(text string) {
	p.write(outputDetail, p.good, "  ✓ "+text)
}

// Warn writes a yellow caution line.
func (p *Printer) Warn(text string) {
	p.write(outputDetail, p.warn, "  ! "+text)
}

// Fail writes a red failure line.
func (p *Printer) Fail(text string) {
	p.write(outputDetail, p.bad, "  ✗ "+text)
}

func (p *Printer) write(kind outputKind, c *color.Color, text string) {
	if text == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	// Blank line between a detail block and the next top-level line.
	if kind == outputApp && p.last == outputDetail {
		fmt.Fprintln(p.out)
	}
	c.Fprint(p.out, ensureTrailingNewline(text))
	p.last = kind
}

func ensureTrailingNewline(text string) string {
	if strings.HasSuffix(text, "\n") {
		return text
	}
	return text + "\n"
}
