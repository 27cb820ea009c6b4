package run

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int, fill color.RGBA, odd *color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := fill
			if odd != nil && (x+y)%2 == 1 {
				c = *odd
			}
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCompareScreenshotsIdenticalIsZero(t *testing.T) {
	t.Parallel()

	shot := encodePNG(t, 10, 10, color.RGBA{R: 200, G: 10, B: 10, A: 255}, nil)
	require.Equal(t, 0.0, CompareScreenshots(shot, shot))
}

func TestCompareScreenshotsHalfDiffering(t *testing.T) {
	t.Parallel()

	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	a := encodePNG(t, 10, 10, red, nil)
	b := encodePNG(t, 10, 10, red, &blue)
	require.InDelta(t, 50.0, CompareScreenshots(a, b), 0.01)
}

func TestCompareScreenshotsSizeMismatchIsFull(t *testing.T) {
	t.Parallel()

	red := color.RGBA{R: 255, A: 255}
	a := encodePNG(t, 10, 10, red, nil)
	b := encodePNG(t, 20, 10, red, nil)
	require.Equal(t, 100.0, CompareScreenshots(a, b))
}

func TestCompareScreenshotsUndecodableIsFull(t *testing.T) {
	t.Parallel()

	shot := encodePNG(t, 4, 4, color.RGBA{A: 255}, nil)
	require.Equal(t, 100.0, CompareScreenshots([]byte("not a png"), shot))
}

func TestBaselineStoreApproveScopedToRunAndStep(t *testing.T) {
	t.Parallel()

	store := NewBaselineStore()
	store.Put("run-a", 1, []byte("v1"))
	store.Put("run-a", 2, []byte("other-step"))

	// Approving step 1 swaps only that key.
	store.Approve("run-a", 1, []byte("v2"))

	img, ok := store.Get("run-a", 1)
	require.True(t, ok)
	require.Equal(t, []byte("v2"), img)

	img, ok = store.Get("run-a", 2)
	require.True(t, ok)
	require.Equal(t, []byte("other-step"), img)

	_, ok = store.Get("run-b", 1)
	require.False(t, ok)
}
