package ledger

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

func TestReferenceGeneratorUniqueAndSorted(t *testing.T) {
	gen := NewReferenceGenerator()
	now := time.Now()

	seen := make(map[string]bool)
	var prev string
	for i := 0; i < 1000; i++ {
		ref := gen.Next(now)
		if !strings.HasPrefix(ref, "TXN-") {
			t.Fatalf("unexpected prefix: %s", ref)
		}
		if seen[ref] {
			t.Fatalf("duplicate reference %s", ref)
		}
		seen[ref] = true
		if prev != "" && ref <= prev {
			t.Fatalf("references not monotonic: %s after %s", ref, prev)
		}
		prev = ref
	}
}
