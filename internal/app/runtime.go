package app

import (
	"os"
	"strconv"
	"sync"
)

// TestModeEnv disables runtime side effects such as rate limiting when set
// to a true value.
const TestModeEnv = "HMS_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return parseTestMode(os.Getenv(TestModeEnv))
})

func parseTestMode(v string) bool {
	on, err := strconv.ParseBool(v)
	return err == nil && on
}

// InTestMode reports whether HMS_TEST_MODE is enabled. The variable is read
// once per process.
func InTestMode() bool {
	return testMode()
}
