// Package distance estimates the travel distance between a pickup and a
// delivery address.
package distance

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
)

// Estimator returns a non-negative distance in kilometres.
type Estimator interface {
	Estimate(ctx context.Context, pickup, delivery string) (float64, error)
}

// RandomEstimator draws a distance uniformly from [Min, Max) km and rounds it
// to two decimals. It stands in until a routing provider is wired.
type RandomEstimator struct {
	Min, Max float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandom(minKm, maxKm float64, seed uint64) (*RandomEstimator, error) {
	if minKm < 0 || maxKm < minKm {
		return nil, errors.New("distance: invalid range")
	}
	return &RandomEstimator{
		Min: minKm,
		Max: maxKm,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

func (e *RandomEstimator) Estimate(ctx context.Context, _, _ string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	f := e.rng.Float64()
	e.mu.Unlock()
	return round2(e.Min + f*(e.Max-e.Min)), nil
}

// Fixed always returns the same distance.
type Fixed float64

func (f Fixed) Estimate(context.Context, string, string) (float64, error) {
	return float64(f), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
