//go:build basic || database || integration

package integration

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	// sharedBinaryPath holds the path to a shared cpapinsight binary built once for all tests.
	sharedBinaryPath string

	// buildOnce ensures we only build the binary once.
	buildOnce sync.Once

	// buildMutex protects the shared binary path.
	buildMutex sync.Mutex

	// tempDir holds the temp directory for cleanup.
	tempDir string
)

// exportRef is the last night of every generated export.
var exportRef = time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC)

// TestMain handles setup and cleanup for all integration tests.
func TestMain(m *testing.M) {
	code := m.Run()

	// Cleanup the shared binary after all tests
	if tempDir != "" {
		_ = os.RemoveAll(tempDir)
	}

	os.Exit(code)
}

// getBinary returns the path to the cpapinsight binary, building it once if needed.
func getBinary() string {
	buildMutex.Lock()
	defer buildMutex.Unlock()

	buildOnce.Do(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "cpapinsight-integration-*")
		if err != nil {
			panic(fmt.Sprintf("failed to create temp dir: %v", err))
		}

		binaryPath := filepath.Join(tempDir, "cpapinsight")
		buildCmd := exec.Command("go", "build", "-o", binaryPath, ".")
		buildCmd.Dir = ".." // Build from parent directory (project root)
		if err := buildCmd.Run(); err != nil {
			panic(fmt.Sprintf("failed to build cpapinsight: %v", err))
		}

		sharedBinaryPath = binaryPath
	})

	return sharedBinaryPath
}

// runCommand runs the CLI with args and returns its stdout.
func runCommand(t *testing.T, env []string, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(getBinary(), args...)
	cmd.Dir = t.TempDir()
	cmd.Env = append(os.Environ(), env...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Logf("Command failed: %s\nStdout: %s\nStderr: %s", cmd.String(), stdout.String(), stderr.String())
		return stdout.String(), err
	}
	return stdout.String(), nil
}

// writeExport writes a CSV export of nights ending at exportRef. usage returns
// the hours used daysAgo nights before the reference.
func writeExport(t *testing.T, nights int, usage func(daysAgo int) float64) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("date,duration_minutes,ahi,mask_leak_avg,mask_leak_95,pressure_avg,obstructive_apneas,central_apneas,hypopneas\n")
	for daysAgo := nights - 1; daysAgo >= 0; daysAgo-- {
		day := exportRef.AddDate(0, 0, -daysAgo)
		fmt.Fprintf(&b, "%s,%.0f,%.1f,12,20,10.5,6,1,4\n", day.Format("2006-01-02"), usage(daysAgo)*60, 2.0+float64(daysAgo%3)*0.5)
	}

	path := filepath.Join(t.TempDir(), "sessions.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}
