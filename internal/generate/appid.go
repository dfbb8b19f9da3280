// Package generate produces synthetic decisioning requests: sequential
// application ID allocation plus template-driven payload rendering.
package generate

import (
	"fmt"
	"math/big"
	"strconv"
	"sync"
)

// prequalWidth is the fixed digit count of prequal application IDs.
const prequalWidth = 20

// Allocator hands out application IDs in a deterministic sequence.
type Allocator interface {
	Next() (string, error)
}

// AppIDAllocator allocates regular integer application IDs.
// Safe for concurrent use.
type AppIDAllocator struct {
	mu        sync.Mutex
	next      int64
	increment int64
}

// NewAppIDAllocator starts a sequence at start, stepping by increment.
func NewAppIDAllocator(start, increment int64) *AppIDAllocator {
	if increment < 1 {
		increment = 1
	}
	return &AppIDAllocator{next: start, increment: increment}
}

func (a *AppIDAllocator) Next() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next += a.increment
	return strconv.FormatInt(id, 10), nil
}

// PrequalAllocator allocates 20-digit prequal application IDs. The value
// space exceeds int64, so arithmetic runs on big integers; the rendered ID
// is always zero-padded to 20 digits.
type PrequalAllocator struct {
	mu        sync.Mutex
	next      *big.Int
	increment *big.Int
	max       *big.Int
}

// NewPrequalAllocator starts a prequal sequence. start must be exactly 20
// digits.
func NewPrequalAllocator(start string, increment int64) (*PrequalAllocator, error) {
	if len(start) != prequalWidth {
		return nil, fmt.Errorf("prequal appid start must be %d digits, got %d", prequalWidth, len(start))
	}
	n, ok := new(big.Int).SetString(start, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("prequal appid start %q is not a valid number", start)
	}
	if increment < 1 {
		increment = 1
	}

	// One past the largest 20-digit value.
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(prequalWidth), nil)

	return &PrequalAllocator{
		next:      n,
		increment: big.NewInt(increment),
		max:       max,
	}, nil
}

func (a *PrequalAllocator) Next() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.next.Cmp(a.max) >= 0 {
		return "", fmt.Errorf("prequal appid space exhausted at %s", a.next.String())
	}

	id := fmt.Sprintf("%0*s", prequalWidth, a.next.String())
	a.next = new(big.Int).Add(a.next, a.increment)
	return id, nil
}
