// Package guard switches the binaries into test mode. Import it for side
// effects from tests that call main.
package guard

import "os"

func init() {
	if _, ok := os.LookupEnv("DOJO_TEST_MODE"); !ok {
		_ = os.Setenv("DOJO_TEST_MODE", "1")
	}
}
