package run

import (
	"bytes"
	"image"
	"image/png"
	"sync"
)

// BaselineStore holds approved reference screenshots keyed by
// (runID, stepNumber). Approval is scoped to that key, never global.
type BaselineStore struct {
	mu     sync.Mutex
	images map[baselineKey][]byte
}

type baselineKey struct {
	runID string
	step  int
}

// NewBaselineStore returns an empty in-memory store.
func NewBaselineStore() *BaselineStore {
	return &BaselineStore{images: map[baselineKey][]byte{}}
}

// Get returns the baseline image for a step of a run.
func (s *BaselineStore) Get(runID string, step int) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[baselineKey{runID, step}]
	return img, ok
}

// Put records a run's screenshot so later runs can baseline against it.
func (s *BaselineStore) Put(runID string, step int, img []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[baselineKey{runID, step}] = img
}

// Approve designates img as the new baseline for (runID, step); the next
// comparison for that step uses it.
func (s *BaselineStore) Approve(runID string, step int, img []byte) {
	s.Put(runID, step, img)
}

// CompareScreenshots returns the percentage of differing pixels between two
// PNG screenshots. Identical bytes short-circuit to zero. Undecodable or
// differently sized images count as fully different.
func CompareScreenshots(a, b []byte) float64 {
	if bytes.Equal(a, b) {
		return 0
	}
	imgA, errA := png.Decode(bytes.NewReader(a))
	imgB, errB := png.Decode(bytes.NewReader(b))
	if errA != nil || errB != nil {
		return 100
	}
	return diffPercent(imgA, imgB)
}

func diffPercent(a, b image.Image) float64 {
	ba, bb := a.Bounds(), b.Bounds()
	if ba.Dx() != bb.Dx() || ba.Dy() != bb.Dy() {
		return 100
	}
	total := ba.Dx() * ba.Dy()
	if total == 0 {
		return 0
	}
	differing := 0
	for y := 0; y < ba.Dy(); y++ {
		for x := 0; x < ba.Dx(); x++ {
			ra, ga, bla, _ := a.At(ba.Min.X+x, ba.Min.Y+y).RGBA()
			rb, gb, blb, _ := b.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			if ra != rb || ga != gb || bla != blb {
				differing++
			}
		}
	}
	return float64(differing) / float64(total) * 100
}
