package app

import (
	"os"
	"strconv"
	"sync"
)

// testModeEnv makes the binaries return from main before touching
// Postgres or Redis, so their packages can be exercised by go test.
const testModeEnv = "DOJO_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	on, _ := strconv.ParseBool(os.Getenv(testModeEnv))
	return on
})

// InTestMode reports whether the application should skip runtime side effects.
// The flag is read once per process.
func InTestMode() bool {
	return testMode()
}
