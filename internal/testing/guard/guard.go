// Package guard switches the process into test mode when imported from
// tests, so binaries started in-process skip their runtime side effects.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("LEDGERDESK_TEST_MODE") == "" {
			_ = os.Setenv("LEDGERDESK_TEST_MODE", "1")
		}
	})
}
