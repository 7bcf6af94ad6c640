// Package guard switches the process into test mode when imported, so code
// under test skips runtime side effects such as rate limiting.
package guard

import (
	"os"
	"sync"
)

// Env mirrors app.TestModeEnv; app cannot be imported here without a cycle
// in its tests.
const Env = "HMS_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(Env) == "" {
			_ = os.Setenv(Env, "1")
		}
	})
}
