// Package testutil provides the shared harness for worker-level tests: it
// materializes an HCL config on disk, builds an app over it, and captures
// the structured log output.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/tenantscope/internal/app"
	"github.com/vk/tenantscope/internal/hcl"
	"github.com/vk/tenantscope/internal/subsystem"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// DefaultConfig declares every entry and singleton the core subsystems
// register, plus two tenants for no-bleed scenarios. Tests that need a
// different config build on this shape.
const DefaultConfig = `
worker {
  force_gc = false
}

resettable "counters.served" {
  default = 0
}

resettable "counters.last_tenant" {
  default = ""
}

resettable "flags.maintenance" {
  default = false
}

resettable "flags.verbose" {
  default = false
}

singleton "db" {
  scope = "request"
}

singleton "events" {
  scope = "process"
}

tenant "acme" {
  hosts      = ["acme.test"]
  attributes = { plan = "pro" }
}

tenant "globex" {
  hosts = ["globex.test"]
}
`

// HarnessResult holds the outcomes of a worker setup.
type HarnessResult struct {
	LogOutput *SafeBuffer
	Err       error
	App       *app.App
}

// SetupWorker writes hclConfig to a temporary directory and builds a worker
// app over it, converting a startup panic into HarnessResult.Err so tests
// can assert on validation failures.
func SetupWorker(t *testing.T, hclConfig string, extra ...subsystem.Module) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "worker.hcl")
	require.NoError(t, os.WriteFile(configPath, []byte(hclConfig), 0644))

	appConfig, err := app.NewConfig(app.Config{
		ConfigPath: configPath,
		LogLevel:   "debug",
		LogFormat:  "text",
	})
	require.NoError(t, err)

	logBuffer := &SafeBuffer{}
	result := &HarnessResult{LogOutput: logBuffer}

	func() {
		defer func() {
			if r := recover(); r != nil {
				result.Err = fmt.Errorf("worker startup panicked | %v", r)
			}
		}()
		result.App = app.NewApp(logBuffer, appConfig, hcl.NewLoader(), extra...)
	}()

	if os.Getenv("TSCOPE_TEST_LOGS") == "true" {
		t.Cleanup(func() {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		})
	}
	return result
}
