package ledger

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const referencePrefix = "TXN-"

// ReferenceGenerator mints unique, sortable transaction reference numbers.
type ReferenceGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewReferenceGenerator seeds the generator with crypto randomness.
func NewReferenceGenerator() *ReferenceGenerator {
	return &ReferenceGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Next returns a reference number for a transaction created at t.
func (g *ReferenceGenerator) Next(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return referencePrefix + ulid.MustNew(ulid.Timestamp(t.UTC()), g.entropy).String()
}
