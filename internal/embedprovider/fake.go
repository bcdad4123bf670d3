package embedprovider

import (
	"context"
	"hash/fnv"
	"math"
)

// Fake is a deterministic, dependency-free Provider used by tests: it
// derives a stable pseudo-embedding from the text's hash so that equal
// inputs always embed identically and different inputs (almost always)
// embed differently, without calling out to any network service.
type Fake struct {
	Dim int
}

func NewFake(dim int) *Fake { return &Fake{Dim: dim} }

func (f *Fake) Dimension() int { return f.Dim }

func (f *Fake) Embed(_ context.Context, text string) ([]float32, error) {
	out := make([]float32, f.Dim)
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	for i := range out {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float64(seed%1000) / 1000.0
		out[i] = float32(math.Sin(v * math.Pi))
	}
	return out, nil
}
