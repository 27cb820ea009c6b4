package output

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

func plainPrinter(t *testing.T) (*Printer, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
	buf := &bytes.Buffer{}
	return NewPrinter(buf), buf
}

func TestPrinterSeparatesSections(t *testing.T) {
	p, buf := plainPrinter(t)

	p.App("Diagnosis")
	p.Detail("Login: testable")
	p.Pass("Login form found")
	p.App("Run")
	p.Fail("step 3 failed")

	require.Equal(t,
		"Diagnosis\n"+
			"  Login: testable\n"+
			"  ✓ Login form found\n"+
			"\n"+
			"Run\n"+
			"  ✗ step 3 failed\n",
		buf.String())
}

func TestPrinterNoGapBetweenAppLines(t *testing.T) {
	p, buf := plainPrinter(t)

	p.App("First")
	p.App("Second")
	require.Equal(t, "First\nSecond\n", buf.String())
}

func TestPrinterSkipsEmptyLines(t *testing.T) {
	p, buf := plainPrinter(t)

	p.Detail("")
	p.App("")
	require.Zero(t, buf.Len())
}

func TestPrinterFormatting(t *testing.T) {
	p, buf := plainPrinter(t)

	p.Appf("Run %s", "abc123")
	p.Detailf("%d steps", 4)
	p.Warn("layout shifted")
	require.Equal(t, "Run abc123\n  4 steps\n  ! layout shifted\n", buf.String())
}

func TestNilWriterDiscards(t *testing.T) {
	t.Parallel()
	p := NewPrinter(nil)
	p.App("goes nowhere")
}
