// Package workload provides deterministic-protocol-agnostic transaction
// generators: a YCSB-style uniform/zipfian key-touching generator and a
// Smallbank-style account-transfer generator, both producing txn.Program
// values the way a real workload driver would.
package workload

import (
	"math"
	"sync"

	"math/rand"
)

// KeyGenerator draws the next key index from [0, numElements).
type KeyGenerator interface {
	Next() uint64
}

// Uniform draws indices uniformly at random; safe for concurrent use by
// multiple workload generators sharing one instance.
type Uniform struct {
	mu          sync.Mutex
	rng         *rand.Rand
	numElements uint64
}

// NewUniform builds a generator over [0, numElements).
func NewUniform(numElements uint64, seed int64) *Uniform {
	return &Uniform{rng: rand.New(rand.NewSource(seed)), numElements: numElements}
}

func (u *Uniform) Next() uint64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return uint64(u.rng.Int63n(int64(u.numElements)))
}

// Zipf draws indices from a Zipfian distribution via rejection inversion
// (Hörmann & Derflinger, "Rejection-Inversion to Generate Variates from
// Monotone Discrete Distributions"), the constant-time alternative to
// building a cumulative-frequency table up front.
type Zipf struct {
	mu sync.Mutex

	numElements float64
	exponent    float64

	hIntegralX1          float64
	hIntegralNumElements float64
	s                    float64

	rng *rand.Rand
}

// NewZipf builds a generator over [0, numElements) with the given
// skew exponent (0 degenerates toward uniform, larger values concentrate
// more mass on the low end of the range).
func NewZipf(numElements uint64, exponent float64, seed int64) *Zipf {
	z := &Zipf{
		numElements: float64(numElements),
		exponent:    exponent,
		rng:         rand.New(rand.NewSource(seed)),
	}
	z.hIntegralX1 = z.hIntegral(1.5) - 1
	z.hIntegralNumElements = z.hIntegral(z.numElements + 0.5)
	z.s = 2 - hIntegralInverse(z, z.hIntegral(2.5)-z.h(2))
	return z
}

func (z *Zipf) hIntegral(x float64) float64 {
	logX := math.Log(x)
	return expm1Div((1-z.exponent)*logX) * logX
}

func (z *Zipf) h(x float64) float64 {
	return math.Exp(-z.exponent * math.Log(x))
}

func hIntegralInverse(z *Zipf, x float64) float64 {
	t := x * (1 - z.exponent)
	if t < -1 {
		t = -1
	}
	return math.Exp(log1pDiv(t) * x)
}

// log1pDiv returns log1p(x)/x, using a Taylor expansion near x == 0 where
// the naive division would lose precision.
func log1pDiv(x float64) float64 {
	if math.Abs(x) > 1e-8 {
		return math.Log1p(x) / x
	}
	return 1 - x*(0.5-x*(1.0/3-0.25*x))
}

// expm1Div returns expm1(x)/x, the counterpart to log1pDiv used by
// hIntegral.
func expm1Div(x float64) float64 {
	if math.Abs(x) > 1e-8 {
		return math.Expm1(x) / x
	}
	return 1 + x*0.5*(1+x*(1.0/3)*(1+0.25*x))
}

func (z *Zipf) Next() uint64 {
	z.mu.Lock()
	defer z.mu.Unlock()
	for {
		u := z.hIntegralNumElements + z.rng.Float64()*(z.hIntegralX1-z.hIntegralNumElements)
		x := hIntegralInverse(z, u)
		k := math.Round(x)
		if k < 1 {
			k = 1
		}
		if k > z.numElements {
			k = z.numElements
		}
		if k-x <= z.s || u >= z.hIntegral(k+0.5)-z.h(k) {
			return uint64(k) - 1
		}
	}
}

// NewKeyGenerator picks Zipf when exponent > 0, Uniform otherwise — the
// same branch the original workload constructors make.
func NewKeyGenerator(numElements uint64, zipfExponent float64, seed int64) KeyGenerator {
	if zipfExponent > 0 {
		return NewZipf(numElements, zipfExponent, seed)
	}
	return NewUniform(numElements, seed)
}
