package patient

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
)

const (
	regNumberMin = 100000
	regNumberMax = 999999

	DefaultMaxAttempts = 100
)

// Allocator mints random six-digit registration numbers that are not yet used
// by any patient. The candidate is not reserved: Store.Create remains the
// point where uniqueness is enforced.
type Allocator struct {
	store       Store
	maxAttempts int
	intN        func(n int) int
}

func NewAllocator(store Store, maxAttempts int) *Allocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Allocator{
		store:       store,
		maxAttempts: maxAttempts,
		intN:        rand.Intn,
	}
}

// Allocate returns an unused registration number. Collisions are retried up
// to the configured number of attempts; storage errors are returned as is.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		candidate := strconv.Itoa(regNumberMin + a.intN(regNumberMax-regNumberMin+1))

		exists, err := a.store.Exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check registration number: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrAllocationExhausted, a.maxAttempts)
}
