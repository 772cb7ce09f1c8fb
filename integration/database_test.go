//go:build database

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/sleepdata/cpapinsight/internal/sessionstore"
	"github.com/sleepdata/cpapinsight/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestCLIWithMySQL tests the CLI with a MySQL backend.
func TestCLIWithMySQL(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mysql:8",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "secret123",
			"MYSQL_DATABASE":      "cpapinsight",
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(60 * time.Second),
	}
	mysqlC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer func() { _ = mysqlC.Terminate(ctx) }()

	host, err := mysqlC.Host(ctx)
	require.NoError(t, err)
	port, err := mysqlC.MappedPort(ctx, "3306")
	require.NoError(t, err)

	connStr := fmt.Sprintf("root:secret123@tcp(%s:%s)/cpapinsight", host, port.Port())
	exerciseBackend(t, schema.MySQLBackend, connStr)
}

// TestCLIWithPostgres tests the CLI with a PostgreSQL backend.
func TestCLIWithPostgres(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_HOST_AUTH_METHOD": "trust",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer func() { _ = pgC.Terminate(ctx) }()

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := fmt.Sprintf("host=%s port=%s user=postgres dbname=postgres sslmode=disable", host, port.Port())
	exerciseBackend(t, schema.PostgreSQLBackend, connStr)
}

// exerciseBackend runs the store commands through the CLI and checks the
// resulting rows through the store package.
func exerciseBackend(t *testing.T, backend schema.DatabaseBackend, connStr string) {
	env := []string{
		"CPAPINSIGHT_STORE_BACKEND=" + string(backend),
		"CPAPINSIGHT_STORE_DB_CONNECT=" + connStr,
		"CPAPINSIGHT_REF=" + exportRef.Format(schema.DateFormat),
	}
	export := writeExport(t, 45, func(int) float64 { return 7 })

	_, err := runCommand(t, env, "store", "clear")
	require.NoError(t, err)

	out, err := runCommand(t, env, "import", export)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 45 of 45 sessions")

	// Re-importing replaces nights rather than duplicating them
	_, err = runCommand(t, env, "import", export)
	require.NoError(t, err)

	out, err = runCommand(t, env, "report", "--output", "json")
	require.NoError(t, err)
	var report schema.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 45, report.RecordCount)

	out, err = runCommand(t, env, "runs", "--output", "json")
	require.NoError(t, err)
	var runs []schema.RunRecord
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)

	_, err = runCommand(t, env, "store", "status")
	require.NoError(t, err)

	_, err = runCommand(t, env, "check")
	require.NoError(t, err, "healthy therapy should pass the gate")

	st, err := sessionstore.NewSessionStore(backend, connStr)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	status, err := st.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(45), status.TableSizes[sessionstore.SessionsTable])
	assert.Equal(t, int64(1), status.TableSizes[sessionstore.RunsTable])
	assert.Equal(t, int64(len(schema.AllScoreTypes)), status.TableSizes[sessionstore.RunScoresTable])

	scores, err := st.ListRunScores(context.Background(), runs[0].RunID)
	require.NoError(t, err)
	assert.Len(t, scores, len(schema.AllScoreTypes))

	// Roll back and re-apply the schema
	_, err = runCommand(t, env, "store", "migrate", "--target-version", "0")
	require.NoError(t, err)
	_, err = runCommand(t, env, "store", "migrate")
	require.NoError(t, err)
}
