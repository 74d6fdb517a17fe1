package app

import (
	"os"
	"testing"

	"github.com/specialistvlad/nodegraph/internal/executor"
	"github.com/specialistvlad/nodegraph/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing. Logs are
// printed when NODEGRAPH_TEST_LOGS=true.
func SetupAppTest(t *testing.T, cfg *Config, modules ...executor.Module) (*App, *testutil.SafeBuffer) {
	t.Helper()

	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	testApp := NewApp(logBuffer, cfg, modules...)

	t.Cleanup(func() {
		_ = testApp.Close()
		if os.Getenv("NODEGRAPH_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
