package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sleepdata/cpapinsight/internal/api"
	"github.com/spf13/cobra"
)

// serveCmd runs the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the therapy analysis over HTTP",
	Long: `Start a read-only JSON API for dashboards.

Endpoints:
  GET /api/v1/report
  GET /api/v1/insights?limit=N
  GET /api/v1/compliance?window=N
  GET /api/v1/scores?window=N
  GET /api/v1/compare?base_ref=DATE&target_ref=DATE
  GET /api/v1/timeseries?interval=7&points=8
  GET /api/v1/check?effectiveness_threshold=50
  GET /api/v1/classify/{metric}/{value}
  GET /healthz
  GET /metrics (Prometheus)

Every analysis endpoint accepts ref=YYYY-MM-DD and profile=NAME. Requests are
logged to stderr in combined log format. API reads never write to the run history.

Examples:
  cpapinsight serve
  cpapinsight serve --listen 0.0.0.0:9090 --store-backend postgresql --store-db-connect "host=db dbname=cpap"`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		_, _ = fmt.Fprintf(os.Stderr, "🌐 Serving therapy analysis for profile %q on http://%s\n", cfg.Profile, cfg.ListenAddr)
		return api.Serve(ctx, cfg, source, os.Stderr)
	},
}
