package allocation

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// ErrInsufficientAuditors means the pool is smaller than the requirement. It is an
// expected outcome: the caller should suggest splitting the credit.
var ErrInsufficientAuditors = errors.New("not enough auditors")

// ShortfallError carries the numbers behind ErrInsufficientAuditors.
type ShortfallError struct {
	Available int
	Required  int
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("%s: %d available, %d required", ErrInsufficientAuditors, e.Available, e.Required)
}

func (e *ShortfallError) Is(target error) bool {
	return target == ErrInsufficientAuditors
}

// Engine selects auditors uniformly at random without replacement.
type Engine struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewEngine returns an engine seeded from the clock.
func NewEngine() *Engine {
	return NewEngineWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewEngineWithRand lets tests fix the random sequence.
func NewEngineWithRand(rnd *rand.Rand) *Engine {
	return &Engine{rnd: rnd}
}

// HasCapacity reports whether a pool of poolSize can satisfy required. It has no side effects.
func (e *Engine) HasCapacity(poolSize, required int) bool {
	return poolSize >= required
}

// Allocate returns required distinct members of pool. Duplicate ids in pool are counted once.
func (e *Engine) Allocate(pool []int64, required int) ([]int64, error) {
	candidates := dedupe(pool)
	if required < 0 {
		return nil, fmt.Errorf("required auditors must be non-negative, got %d", required)
	}
	if !e.HasCapacity(len(candidates), required) {
		return nil, &ShortfallError{Available: len(candidates), Required: required}
	}

	// Partial Fisher-Yates: the first `required` slots end up a uniform sample.
	e.mu.Lock()
	for i := 0; i < required; i++ {
		j := i + e.rnd.Intn(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
	e.mu.Unlock()

	return candidates[:required:required], nil
}

func dedupe(pool []int64) []int64 {
	seen := make(map[int64]struct{}, len(pool))
	out := make([]int64, 0, len(pool))
	for _, id := range pool {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
