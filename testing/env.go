// Package testing seeds the environment LoadConfig requires. Test packages
// import it for side effects.
package testing

import "os"

var defaults = map[string]string{
	"DOJO_TEST_MODE": "1",
	"SESSION_SECRET": "test-session-secret",
	"CSRF_SECRET":    "test-csrf-secret",
}

func init() {
	for key, value := range defaults {
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, value)
		}
	}
}
