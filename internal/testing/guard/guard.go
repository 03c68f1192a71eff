// Package guard flips the runtime into test mode for any test binary
// that imports it, so mains skip their side effects.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("AURUM_TEST_MODE") == "" {
			_ = os.Setenv("AURUM_TEST_MODE", "1")
		}
	})
}
