package generator

import (
	"math"
	"math/rand/v2"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

// random is the single source of randomness for a run. Every draw goes
// through it so that a seed reproduces the whole output tree.
type random struct {
	*rand.Rand
	fake *gofakeit.Faker
}

func newRandom(seed uint64) *random {
	return &random{
		Rand: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		fake: gofakeit.New(seed),
	}
}

// between returns an int in [lo, hi].
func (r *random) between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo+1)
}

func (r *random) uniform(lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

func (r *random) chance(p float64) bool {
	return r.Float64() < p
}

// weighted returns an index drawn with the given relative weights.
func (r *random) weighted(weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	x := r.Float64() * total
	for i, w := range weights {
		if x < w {
			return i
		}
		x -= w
	}
	return len(weights) - 1
}

func (r *random) gauss(mean, sd float64) float64 {
	return mean + sd*r.NormFloat64()
}

func (r *random) lognormal(mu, sigma float64) float64 {
	return math.Exp(r.gauss(mu, sigma))
}

// poisson uses Knuth's method; lambda is small for daily volumes.
func (r *random) poisson(lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	l := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		p *= r.Float64()
		if p <= l {
			return k
		}
		k++
	}
}

// digits returns n random decimal digits; the first is never zero.
func (r *random) digits(n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		d := r.IntN(10)
		if i == 0 && d == 0 {
			d = 1 + r.IntN(9)
		}
		b.WriteByte(byte('0' + d))
	}
	return b.String()
}

// Read feeds uuid generation from the seeded stream.
func (r *random) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r.Uint32())
	}
	return len(p), nil
}

// hexID returns the first n upper-case hex characters of a fresh UUID.
func (r *random) hexID(n int) string {
	id := uuid.Must(uuid.NewRandomFromReader(r))
	s := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	if n > len(s) {
		n = len(s)
	}
	return s[:n]
}

func pick[T any](r *random, items []T) T {
	return items[r.IntN(len(items))]
}

func pickWeighted[T any](r *random, items []T, weights []float64) T {
	return items[r.weighted(weights)]
}

// sample returns n distinct items in random order.
func sample[T any](r *random, items []T, n int) []T {
	if n > len(items) {
		n = len(items)
	}
	idx := r.Perm(len(items))[:n]
	out := make([]T, n)
	for i, j := range idx {
		out[i] = items[j]
	}
	return out
}
